package metrics

import "expvar"

var (
	ReconcileRuns   = expvar.NewInt("reconcile_runs")
	ReconcileErrors = expvar.NewInt("reconcile_errors")

	TickBatches       = expvar.NewInt("tick_batches")
	TicksNormalized   = expvar.NewInt("ticks_normalized")
	TicksMalformed    = expvar.NewInt("ticks_malformed")
	TickFetchFailures = expvar.NewInt("tick_fetch_failures")
	WSMessages        = expvar.NewInt("ws_messages")
	WSReconnects      = expvar.NewInt("ws_reconnects")

	OrdersSubmitted        = expvar.NewInt("orders_submitted")
	OrdersRejected         = expvar.NewInt("orders_rejected")
	Cancels                = expvar.NewInt("cancels")
	CancelsAlreadyResolved = expvar.NewInt("cancels_already_resolved")

	SignatureErrors = expvar.NewInt("signature_errors")
)
