package main

import (
	_ "expvar"
	_ "net/http/pprof"
)

// TODO: tracing once the hosting provider is settled (New Relic free tier is the candidate).
func main() {
	startWithDig()
}
