/*
Package resilience provides a circuit breaker for unreliable collaborators.

The hardware source reads its sensor through a Breaker: after a run of failed
reads the breaker opens, the reader backs off for the cooldown, then probes the
device again before resuming normal acquisition.

# States

	Closed --[failures]-> Open --[cooldown]-> Half-Open --[probes succeed]-> Closed
	                                            |
	                                     [probe fails]
	                                            |
	                                            v
	                                          Open

# Usage

	breaker := resilience.New("daq", resilience.Settings{
		Cooldown: 2 * time.Second,
		Trip:     resilience.ConsecutiveFailures(5),
	})

	sample, err := resilience.Do(breaker, func() ([]float64, error) {
		return device.ReadSample(ctx)
	})
*/
package resilience
