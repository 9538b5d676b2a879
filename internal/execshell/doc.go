// Package execshell runs external commands such as git and the platform URL opener.
//
// ShellExecutor reports every command through zap or a CommandEventObserver and
// converts non-zero exit codes into CommandFailedError values, while
// OSCommandRunner performs the actual process execution.
package execshell
