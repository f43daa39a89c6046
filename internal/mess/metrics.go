package mess

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	bookingsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mess_bookings_total",
		Help: "Booking attempts by outcome.",
	}, []string{"outcome"})

	scansTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mess_scans_total",
		Help: "Entry scans by outcome.",
	}, []string{"outcome"})
)
