// Package cobot provides a control client for a six-axis COBOT arm over
// a serial link: connection and bring-up supervision, continuous joint
// telemetry and validated motion, stop and calibration commands.
//
// # Installation
//
//	go install github.com/cobotkit/cobot/cmd/cobotctl@latest
//
// # Usage
//
// List candidate serial ports:
//
//	cobotctl scan
//
// Watch live joint telemetry (against the bundled simulator):
//
//	cobotctl monitor --sim
//
// Issue one-shot commands:
//
//	cobotctl move --joint 2 --angle 45 --speed 30 --sim
//	cobotctl stop --all --sim
//	cobotctl calibrate --sim
//
// # Packages
//
// The module is organized into the following packages:
//
//   - cmd/cobotctl: CLI with scan, monitor, move, stop and calibrate commands
//   - pkg/cobot: session state machine, telemetry poller, command dispatcher
//   - pkg/sim: simulated controller for demos and tests
//
// Real hardware is reached by implementing cobot.Transport for the
// controller's firmware framing and passing it in through a cobot.Dialer.
package cobot
