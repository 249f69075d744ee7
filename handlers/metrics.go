package handlers

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	uploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storyweave_uploads_total",
			Help: "Total number of media uploads by status.",
		},
		[]string{"status"},
	)

	uploadedBytesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "storyweave_uploaded_bytes_total",
		Help: "Total number of bytes stored by successful uploads.",
	})

	storySavesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storyweave_story_saves_total",
			Help: "Total number of story save attempts by status.",
		},
		[]string{"status"},
	)

	storyPagesSaved = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "storyweave_story_pages",
		Help: "Number of pages in the last saved story.",
	})
)
