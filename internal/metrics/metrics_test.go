// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package metrics

import (
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Thermoquad/bitbrick/pkg/bitbrick"
)

type frameTransport struct {
	frame string
	err   error
}

func (f *frameTransport) SendCommand(string) error { return f.err }

func (f *frameTransport) GetSensorValues() (string, error) { return f.frame, f.err }

func TestAppMetrics_ObservesDevice(t *testing.T) {
	reg := NewRegistry()
	m := NewAppMetrics(reg)

	tr := &frameTransport{frame: "FFFF03FF000000010200"}
	dev := bitbrick.NewDevice(tr, bitbrick.WithObserver(m))

	require.NoError(t, dev.StopAll())
	_, err := dev.ReadSensors()
	require.NoError(t, err)

	tr.frame = "FFFF"
	_, err = dev.ReadSensors()
	require.Error(t, err)

	tr.err = errors.New("unplugged")
	_ = dev.TurnOffLED()
	_, _ = dev.ReadSensors()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.CommandsTotal.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CommandsTotal.WithLabelValues("error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SensorsTotal.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SensorsTotal.WithLabelValues("decode_error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SensorsTotal.WithLabelValues("read_error")))

	assert.Equal(t, 1023.0, testutil.ToFloat64(m.SensorValue.WithLabelValues("1")))
	assert.Equal(t, 512.0, testutil.ToFloat64(m.SensorValue.WithLabelValues("4")))
}

func TestHandler_Exposes(t *testing.T) {
	reg := NewRegistry()
	m := NewAppMetrics(reg)
	m.BlockCalled("turnOffLED", nil)

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), `bitbrick_block_calls_total{opcode="turnOffLED",result="ok"} 1`)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
