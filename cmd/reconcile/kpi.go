package main

import "github.com/ambre-dwings/reconcile/internal/kpi"

func newKPISnapshot() (*kpi.Snapshot, error) {
	return kpi.NewFileSnapshot("kpi-snapshots")
}
