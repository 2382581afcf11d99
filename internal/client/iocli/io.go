// Package iocli abstracts terminal input and output for the CLI commands.
package iocli

// IO - ввод/вывод команд CLI, в тестах подменяется
type IO interface {
	Println(a ...any)
	Printf(format string, a ...any)
	ReadInput(prompt string) (string, error)
	ReadPassword(prompt string) (string, error)
	Write(p []byte) (n int, err error)
}
