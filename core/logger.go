package core

// Logger is implemented by services/logger.
// expected args: error, map[string]interface{}, Person
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}

// Person identifies who triggered a log entry.
type Person struct {
	ID       string
	Username string
	Email    string
}
