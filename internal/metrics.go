package internal

import (
	"expvar"

	"hookfeed/pkg/events"
)

const unsupportedKindLabel = "unsupported"

var (
	requestsTotal  = expvar.NewMap("hookfeed_requests_total")
	rejectedTotal  = expvar.NewMap("hookfeed_rejected_total")
	storedTotal    = expvar.NewMap("hookfeed_stored_total")
	ignoredTotal   = expvar.NewMap("hookfeed_ignored_total")
	publishErrors  = expvar.NewMap("hookfeed_publish_errors_total")
	publishDropped = expvar.NewInt("hookfeed_publish_dropped_total")
)

// IncRequest counts a classified delivery. Every kind outside the supported
// set shares one "unsupported" key.
func IncRequest(kind events.Kind) {
	label := unsupportedKindLabel
	if kind.Valid() {
		label = string(kind)
	}
	requestsTotal.Add(label, 1)
}

// IncRejected counts a delivery that ended in the Rejected state.
func IncRejected(reason string) {
	rejectedTotal.Add(reason, 1)
}

func IncStored(kind string) {
	storedTotal.Add(kind, 1)
}

func IncIgnored(filter string) {
	ignoredTotal.Add(filter, 1)
}

func IncPublishError(driver string) {
	publishErrors.Add(driver, 1)
}

// IncPublishDropped counts a record the publish queue had no room for.
func IncPublishDropped() {
	publishDropped.Add(1)
}
