package logging

import "log/slog"

// Domain identifiers

func Identity(id int64) slog.Attr {
	return slog.Int64("identity_id", id)
}

func Team(id int64) slog.Attr {
	return slog.Int64("team_id", id)
}

func Connection(id string) slog.Attr {
	return slog.String("conn_id", id)
}

func EntityType(tag string) slog.Attr {
	return slog.String("entity_type", tag)
}

func Task(id int64) slog.Attr {
	return slog.Int64("task_id", id)
}

// Request / tracing

func RequestID(id string) slog.Attr {
	return slog.String("request_id", id)
}

func TraceID(id string) slog.Attr {
	return slog.String("trace_id", id)
}

// Error handling

func Err(err error) slog.Attr {
	if err == nil {
		return slog.String("error", "")
	}
	return slog.String("error", err.Error())
}
