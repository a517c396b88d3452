//go:build unit || !integration

package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCapabilities(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected CapabilityTable
		wantErr  string
	}{
		{
			name:  "seconds",
			input: "job_A:3,job_B:5,job_C:7",
			expected: CapabilityTable{
				JobTypeA: 3 * time.Second,
				JobTypeB: 5 * time.Second,
				JobTypeC: 7 * time.Second,
			},
		},
		{
			name:     "fractional seconds and whitespace",
			input:    " job_D : 2.5 , ",
			expected: CapabilityTable{JobTypeD: 2500 * time.Millisecond},
		},
		{
			name:     "go duration",
			input:    "job_E:1500ms",
			expected: CapabilityTable{JobTypeE: 1500 * time.Millisecond},
		},
		{name: "empty", input: "", wantErr: "cannot be empty"},
		{name: "missing separator", input: "job_A", wantErr: "expected <job_type>:<seconds>"},
		{name: "bad duration", input: "job_A:soon", wantErr: "invalid capability"},
		{name: "zero duration", input: "job_A:0", wantErr: "positive duration"},
		{name: "duplicate", input: "job_A:1,job_A:2", wantErr: "duplicate"},
		{name: "bad job type", input: "job/A:1", wantErr: "invalid job type"},
		{name: "duration out of range", input: "job_A:1e12", wantErr: "duration cannot exceed"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			table, err := ParseCapabilities(tc.input)
			if tc.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, table)
		})
	}
}

func TestCapabilityTable_String(t *testing.T) {
	table := CapabilityTable{JobTypeB: 2 * time.Second, JobTypeA: 1500 * time.Millisecond}
	assert.Equal(t, "job_A:1.5,job_B:2", table.String())

	parsed, err := ParseCapabilities(table.String())
	require.NoError(t, err)
	assert.Equal(t, table, parsed)
}

func TestCapabilityTable_Lookup(t *testing.T) {
	table := CapabilityTable{JobTypeA: time.Second}
	d, ok := table.Duration(JobTypeA)
	assert.True(t, ok)
	assert.Equal(t, time.Second, d)
	assert.False(t, table.Supports(JobTypeE))

	cp := table.Copy()
	cp[JobTypeE] = time.Minute
	assert.False(t, table.Supports(JobTypeE), "copy must not alias the original table")
}
