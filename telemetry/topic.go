// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package telemetry

import "fmt"

// Topic identifies one output channel.
type Topic int

const (
	BarometerPressure Topic = iota
	BarometerTemperature
	BarometerStatus
	ThermocoupleTemperature
	ThermocoupleBoardTemperature
	ThermocoupleStatus
	HygrometerHumidity
	HygrometerTemperature
	HygrometerStatus
	SystemStatus

	numTopics
)

// Topics lists every Topic in declaration order.
func Topics() []Topic {
	t := make([]Topic, numTopics)
	for i := range t {
		t[i] = Topic(i)
	}
	return t
}

func (t Topic) String() string {
	switch t {
	case BarometerPressure:
		return "BarometerPressure"
	case BarometerTemperature:
		return "BarometerTemperature"
	case BarometerStatus:
		return "BarometerStatus"
	case ThermocoupleTemperature:
		return "ThermocoupleTemperature"
	case ThermocoupleBoardTemperature:
		return "ThermocoupleBoardTemperature"
	case ThermocoupleStatus:
		return "ThermocoupleStatus"
	case HygrometerHumidity:
		return "HygrometerHumidity"
	case HygrometerTemperature:
		return "HygrometerTemperature"
	case HygrometerStatus:
		return "HygrometerStatus"
	case SystemStatus:
		return "SystemStatus"
	}
	return fmt.Sprintf("Topic(%d)", int(t))
}

// Table maps each Topic to its broker topic name. It is read only once
// built.
type Table struct {
	names map[Topic]string
}

// NewTable returns the table of the fixed topic names.
func NewTable() *Table {
	const value = "/remote_io_module/sensor_value/"
	const status = "/remote_io_module/sensor_status/"
	return &Table{names: map[Topic]string{
		BarometerPressure:            value + "Pressure",
		BarometerTemperature:         value + "Pressure_Sensor_Temp",
		BarometerStatus:              status + "LPS25HB_Error",
		ThermocoupleTemperature:      value + "Thermocouple_Temp",
		ThermocoupleBoardTemperature: value + "Board_Temp_1",
		ThermocoupleStatus:           status + "MAX31855_Error",
		HygrometerHumidity:           value + "Relative_Humidity",
		HygrometerTemperature:        value + "Humidity_Sensor_Temp",
		HygrometerStatus:             status + "HTS221_Error",
		SystemStatus:                 status + "System_Error",
	}}
}

// Name returns the broker topic name of t. An unknown Topic is a
// programming error and panics.
func (tb *Table) Name(t Topic) string {
	n, ok := tb.names[t]
	if !ok {
		panic(fmt.Sprintf("telemetry: no name for %s", t))
	}
	return n
}
