// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package metrics

import (
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Thermoquad/bitbrick/pkg/bitbrick"
)

// NewRegistry creates a registry with the Go and process collectors
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler serves the registry in the Prometheus exposition format
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

// AppMetrics tracks device traffic. It implements bitbrick.Observer.
type AppMetrics struct {
	CommandsTotal *prometheus.CounterVec // labels: result=ok|error
	SensorsTotal  *prometheus.CounterVec // labels: result=ok|decode_error|read_error
	SensorValue   *prometheus.GaugeVec   // labels: port
	BlockCalls    *prometheus.CounterVec // labels: opcode, result
}

// NewAppMetrics registers and returns the device metrics
func NewAppMetrics(reg *prometheus.Registry) *AppMetrics {
	m := &AppMetrics{
		CommandsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bitbrick_command_frames_total",
			Help: "Command frames handed to the transport.",
		}, []string{"result"}),
		SensorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bitbrick_sensor_reads_total",
			Help: "Sensor frame reads by outcome.",
		}, []string{"result"}),
		SensorValue: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "bitbrick_sensor_value",
			Help: "Latest decoded 10-bit reading per sensor port.",
		}, []string{"port"}),
		BlockCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bitbrick_block_calls_total",
			Help: "Block invocations by opcode and outcome.",
		}, []string{"opcode", "result"}),
	}
	reg.MustRegister(m.CommandsTotal, m.SensorsTotal, m.SensorValue, m.BlockCalls)
	return m
}

// CommandSent implements bitbrick.Observer
func (m *AppMetrics) CommandSent(frame string, err error) {
	m.CommandsTotal.WithLabelValues(result(err)).Inc()
}

// SensorDecoded implements bitbrick.Observer
func (m *AppMetrics) SensorDecoded(frame string, values bitbrick.SensorValues, err error) {
	var decodeErr *bitbrick.DecodeError
	switch {
	case errors.As(err, &decodeErr):
		m.SensorsTotal.WithLabelValues("decode_error").Inc()
		return
	case err != nil:
		m.SensorsTotal.WithLabelValues("read_error").Inc()
		return
	}

	m.SensorsTotal.WithLabelValues("ok").Inc()
	for i, v := range values {
		m.SensorValue.WithLabelValues(bitbrick.SensorPorts[i]).Set(float64(v))
	}
}

// BlockCalled counts one block invocation
func (m *AppMetrics) BlockCalled(opcode string, err error) {
	m.BlockCalls.WithLabelValues(opcode, result(err)).Inc()
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
