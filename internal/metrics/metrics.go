package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	BillOpsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "billing_bill_ops_total",
			Help: "Bill operations by op",
		},
		[]string{"op"}, // add|update|delete|list|stats
	)

	TenantsProvisionedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "billing_tenants_provisioned_total",
			Help: "Tenant table sets provisioned this process lifetime",
		},
	)

	AuthFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "billing_auth_failures_total",
			Help: "Rejected bearer credentials",
		},
	)

	EventsPublishedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "billing_events_published_total",
			Help: "Outbox events published to Kafka",
		},
	)
)

func MustRegister(r prometheus.Registerer) {
	r.MustRegister(
		BillOpsTotal,
		TenantsProvisionedTotal,
		AuthFailuresTotal,
		EventsPublishedTotal,
	)
}
