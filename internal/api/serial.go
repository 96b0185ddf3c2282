package api

import (
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/banshee-data/beaconradar/internal/httputil"
	"github.com/banshee-data/beaconradar/internal/serialmux"
)

var defaultListPorts = serialmux.ListPorts

// SerialDeviceInfo describes a serial port a BLE dongle may be attached to.
type SerialDeviceInfo struct {
	PortPath     string `json:"port_path"`
	FriendlyName string `json:"friendly_name"`
}

// handleSerialDevices serves GET /api/serial/devices.
func (s *Server) handleSerialDevices(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	ports, err := s.listPorts()
	if err != nil {
		logf("enumerate serial ports: %v", err)
		httputil.InternalServerError(w, "failed to enumerate serial ports")
		return
	}

	devices := make([]SerialDeviceInfo, 0, len(ports))
	for _, p := range ports {
		devices = append(devices, SerialDeviceInfo{PortPath: p, FriendlyName: friendlyPortName(p)})
	}
	httputil.WriteJSONOK(w, devices)
}

// friendlyPortName labels the device node types common BLE dongles show up
// as.
func friendlyPortName(portPath string) string {
	name := filepath.Base(portPath)
	switch {
	case strings.HasPrefix(name, "ttyACM"):
		return fmt.Sprintf("USB CDC dongle (%s)", name)
	case strings.HasPrefix(name, "ttyUSB"):
		return fmt.Sprintf("USB serial adapter (%s)", name)
	case strings.HasPrefix(name, "cu.usbmodem"):
		return fmt.Sprintf("USB modem (%s)", name)
	case strings.HasPrefix(name, "ttyAMA"), strings.HasPrefix(name, "ttyS"):
		return fmt.Sprintf("On-board UART (%s)", name)
	default:
		return name
	}
}
