/*
Package shell implements the interactive command loop.

The command table is built explicitly when the shell starts; each entry
maps a command name to one handler. A line is the command name followed by
a single trailing argument string that the handler parses itself.

Every command either prints an acknowledgment or returns an error, printed
as "error: <message>". Unknown commands return types.ErrUnknownCommand and
leave the pipeline untouched. A panicking handler is recovered and reported
like any other failure, so malformed input never ends the loop. quit and
exit end Run with a nil error.

	sh := shell.New(console, driver, logger)
	if err := sh.Run(ctx, os.Stdin, os.Stdout); err != nil {
		// stdin failed or ctx was cancelled
	}
*/
package shell
