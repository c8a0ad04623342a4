package i

// Logger is the minimal logging surface services and adapters depend on.
type Logger interface {
	Info(msg string)
	Warning(msg string)
	Error(msg string)
}
