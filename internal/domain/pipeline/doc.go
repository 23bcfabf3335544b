/*
Package pipeline wires the console together and drives it.

A Console owns every piece of process-wide state: registry, sample buffer,
source, filter chain, display manager, recorder and plot broadcaster. It is
built once from configuration plus an optional startup pipeline file and
then shared by the shell, the driver and the HTTP server.

The Driver moves between Stopped and Running. While running, two loops
share the Console: acquisition pulls one tick from the source into the
buffer every acquire interval, and rendering runs one display manager tick
every render interval. Neither loop waits on the other, so a stalled source
never stalls rendering.

	console, err := pipeline.NewConsole(pipeline.Options{Config: cfg, Logger: logger})
	driver := pipeline.NewDriver(console)
	driver.Start(ctx)
	defer driver.Stop()
*/
package pipeline
