// Package metrics — счётчики Prometheus для леджера, онбординга и корзины.
// Отдаются ops-сервером на /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	LedgerAppendsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_appends_total",
			Help: "Appended ledger transactions by type",
		},
		[]string{"type"},
	)

	LedgerProjectionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ledger_projections_total",
			Help: "Balance projections written",
		},
	)

	LedgerInvariantViolationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ledger_invariant_violations_total",
			Help: "Projections that failed the balance sanity check",
		},
	)

	ReferralOnboardingTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "referral_onboarding_total",
			Help: "Onboarding attempts by terminal status",
		},
		[]string{"status"},
	)

	ReferralCommissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "referral_commissions_total",
			Help: "Purchase commissions credited by level",
		},
		[]string{"level"},
	)

	CartOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cart_operations_total",
			Help: "Cart operations by kind",
		},
		[]string{"op"},
	)

	ReconcileDriftsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "reconcile_drifts_total",
			Help: "Profiles whose stored bonus differed from the ledger sum",
		},
	)
)
