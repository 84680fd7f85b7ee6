// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package metrics

import (
	"net/http"

	"github.com/prometheus/common/expfmt"

	"github.com/luxfi/log"
	"github.com/luxfi/metric"
)

// NewHandler serves the metrics of [gatherer] in the prometheus text format.
func NewHandler(gatherer metric.Gatherer, logger log.Logger) http.Handler {
	format := expfmt.NewFormat(expfmt.TypeTextPlain)
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		families, err := gatherer.Gather()
		if err != nil {
			logger.Warn("couldn't gather metrics",
				log.Err(err),
			)
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", string(format))
		encoder := expfmt.NewEncoder(w, format)
		for _, family := range families {
			if err := encoder.Encode(family); err != nil {
				logger.Debug("couldn't encode metric family",
					log.Err(err),
				)
				return
			}
		}
	})
}
