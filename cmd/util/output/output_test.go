//go:build unit || !integration

package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

type row struct {
	Name  string `json:"name" yaml:"name"`
	Count int    `json:"count" yaml:"count"`
}

var columns = []TableColumn[row]{
	{ColumnConfig: table.ColumnConfig{Name: "Name"}, Value: func(r row) string { return r.Name }},
	{ColumnConfig: table.ColumnConfig{Name: "Count"}, Value: func(r row) string { return strings.Repeat("*", r.Count) }},
}

func newCmd() (*cobra.Command, *bytes.Buffer) {
	buf := new(bytes.Buffer)
	cmd := &cobra.Command{}
	cmd.SetOut(buf)
	return cmd, buf
}

func TestOutputTable(t *testing.T) {
	cmd, buf := newCmd()
	rows := []row{{Name: "machine_001", Count: 2}, {Name: "machine_002", Count: 1}}
	require.NoError(t, Output(cmd, columns, OutputOptions{Format: TableFormat, NoStyle: true}, rows))

	out := buf.String()
	assert.Contains(t, out, "NAME")
	assert.Contains(t, out, "machine_001")
	assert.Contains(t, out, "**")
}

func TestOutputTableHideHeader(t *testing.T) {
	cmd, buf := newCmd()
	require.NoError(t, Output(cmd, columns, OutputOptions{Format: TableFormat, NoStyle: true, HideHeader: true},
		[]row{{Name: "machine_001"}}))
	assert.NotContains(t, buf.String(), "NAME")
}

func TestOutputCSV(t *testing.T) {
	cmd, buf := newCmd()
	require.NoError(t, Output(cmd, columns, OutputOptions{Format: CSVFormat, NoStyle: true}, []row{{Name: "machine_001", Count: 1}}))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "machine_001,*", lines[1])
}

func TestOutputJSON(t *testing.T) {
	cmd, buf := newCmd()
	rows := []row{{Name: "machine_001", Count: 2}}
	require.NoError(t, Output(cmd, columns, OutputOptions{Format: JSONFormat}, rows))

	var decoded []row
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, rows, decoded)
}

func TestOutputOneYAML(t *testing.T) {
	cmd, buf := newCmd()
	require.NoError(t, OutputOne(cmd, columns, OutputOptions{Format: YAMLFormat}, row{Name: "supervisor_001", Count: 3}))

	var decoded row
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, row{Name: "supervisor_001", Count: 3}, decoded)
}

func TestParseFormat(t *testing.T) {
	format, err := ParseFormat("json")
	require.NoError(t, err)
	assert.Equal(t, JSONFormat, format)

	_, err = ParseFormat("xml")
	assert.Error(t, err)
}
