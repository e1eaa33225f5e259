// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package remoteio is a container for the remote I/O module: the sensor
// drivers, the buses they sit on, and the acquisition task publishing their
// readings.
//
// The task itself is cmd/remoteio.
package remoteio
