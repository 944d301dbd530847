/*
Package resilience provides circuit breakers for outbound calls.

# Overview

A Breaker stops calling a dependency that keeps failing and lets a few trial
requests through once a cooldown has passed. A Group keeps one Breaker per key,
which the page fetcher uses to isolate hosts from each other.

# Usage

	hosts := resilience.NewGroup(resilience.Settings{
		Cooldown: 30 * time.Second,
		Trip: func(c resilience.Counts) bool {
			return c.ConsecutiveFailures >= 5
		},
	})

	body, err := resilience.Call(hosts.Get(u.Host), func() ([]byte, error) {
		return fetch(ctx, u)
	})

# States

	Closed --[trip]-> Open --[cooldown]-> Half-Open --[probes succeed]-> Closed
	                                          |
	                                      [failure]
	                                          v
	                                         Open
*/
package resilience
