package nats

import (
	"fmt"
	"strings"
)

// SubjectFromTopic maps a bus topic such as "jobs/bid/supervisor_001" to
// the NATS subject "jobs.bid.supervisor_001".
func SubjectFromTopic(topic string) (string, error) {
	if topic == "" {
		return "", NewConfigurationError("topic cannot be empty")
	}
	if strings.ContainsAny(topic, ".*> \t\r\n") {
		return "", NewConfigurationError("topic %q contains characters reserved by NATS", topic)
	}
	subject := strings.ReplaceAll(topic, "/", ".")
	if strings.HasPrefix(subject, ".") || strings.HasSuffix(subject, ".") || strings.Contains(subject, "..") {
		return "", NewConfigurationError("topic %q has an empty segment", topic)
	}
	return subject, nil
}

// TopicFromSubject is the inverse of SubjectFromTopic.
func TopicFromSubject(subject string) string {
	return strings.ReplaceAll(subject, ".", "/")
}

// ServerURL builds a client URL from a host and port.
func ServerURL(host string, port int) string {
	return fmt.Sprintf("nats://%s:%d", host, port)
}
