/*
Package tracing provides lightweight request tracing for the status API.

Each HTTP request gets a span whose trace and span IDs are prefixed ULIDs.
An incoming X-Trace-ID header continues an existing trace. IDs are echoed
back in the response headers, and finished spans are logged by a background
collector so the request path never blocks on logging.

	tracer := tracing.New("dspconsole", logger)
	defer tracer.Close()
	router.Use(tracing.HTTPMiddleware(tracer))
*/
package tracing
