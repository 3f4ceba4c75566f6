package ctxutil

import (
	"context"
	"strings"
)

type traceDataKey struct{}

// TraceData correlates log lines for one request or worker cycle. The
// pointer is shared down the call chain so handlers can fill in the student
// and event once they are known.
type TraceData struct {
	TraceID   string
	RequestID string
	StudentID string
	EventID   string
}

func WithTraceData(ctx context.Context, td *TraceData) context.Context {
	return context.WithValue(ctx, traceDataKey{}, td)
}

func GetTraceData(ctx context.Context) *TraceData {
	if ctx == nil {
		return nil
	}
	if td, ok := ctx.Value(traceDataKey{}).(*TraceData); ok {
		return td
	}
	return nil
}

// SetStudentID records the student on the context's TraceData, if any.
func SetStudentID(ctx context.Context, studentID string) {
	if td := GetTraceData(ctx); td != nil {
		td.StudentID = strings.TrimSpace(studentID)
	}
}

func SetEventID(ctx context.Context, eventID string) {
	if td := GetTraceData(ctx); td != nil {
		td.EventID = eventID
	}
}

// LogFields flattens the non-empty TraceData values into logger key/value
// pairs.
func LogFields(ctx context.Context) []interface{} {
	td := GetTraceData(ctx)
	if td == nil {
		return nil
	}
	var out []interface{}
	for _, kv := range [][2]string{
		{"trace_id", td.TraceID},
		{"request_id", td.RequestID},
		{"student_id", td.StudentID},
		{"event_id", td.EventID},
	} {
		if kv[1] != "" {
			out = append(out, kv[0], kv[1])
		}
	}
	return out
}
