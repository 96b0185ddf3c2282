package scanner

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/banshee-data/beaconradar/internal/beacon"
	"github.com/banshee-data/beaconradar/internal/query"
)

var ErrEmptyLine = errors.New("empty advertisement line")

// MissingRSSI stands in for an advertisement that carries no usable signal
// strength. It is the weakest reading the display knows.
const MissingRSSI = query.InactiveRSSI

// advertisement is the JSON form printed by dongles and published by MQTT
// gateways. Manufacturer data is keyed by decimal company id with hex values.
type advertisement struct {
	Addr string            `json:"addr"`
	Name string            `json:"name"`
	RSSI *int              `json:"rssi"`
	Mfg  map[string]string `json:"mfg"`
}

// DecodeLine parses one advertisement line. JSON objects and the short CSV
// form "addr,rssi[,name]" are accepted.
func DecodeLine(line string) (beacon.Detection, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return beacon.Detection{}, ErrEmptyLine
	}
	if strings.HasPrefix(line, "{") {
		return DecodeJSON([]byte(line))
	}
	return decodeCSVLine(line)
}

// DecodeJSON parses a JSON advertisement. Only a missing address fails it: a
// missing rssi becomes MissingRSSI and unparseable manufacturer entries are
// dropped.
func DecodeJSON(data []byte) (beacon.Detection, error) {
	var adv advertisement
	if err := json.Unmarshal(data, &adv); err != nil {
		return beacon.Detection{}, fmt.Errorf("decode advertisement: %w", err)
	}
	if adv.Addr == "" {
		return beacon.Detection{}, errors.New("advertisement without addr")
	}
	d := beacon.Detection{
		Address: strings.ToUpper(adv.Addr),
		Name:    adv.Name,
		RSSI:    MissingRSSI,
	}
	if adv.RSSI != nil {
		d.RSSI = *adv.RSSI
	}
	for k, v := range adv.Mfg {
		id, err := strconv.ParseUint(k, 10, 16)
		if err != nil {
			logf("ignoring manufacturer id %q from %s", k, d.Address)
			continue
		}
		payload, err := hex.DecodeString(v)
		if err != nil {
			logf("ignoring manufacturer data for %d from %s: %v", id, d.Address, err)
			continue
		}
		if d.VendorData == nil {
			d.VendorData = make(map[uint16][]byte)
		}
		d.VendorData[uint16(id)] = payload
	}
	return d, nil
}

func decodeCSVLine(line string) (beacon.Detection, error) {
	fields := strings.SplitN(line, ",", 3)
	if len(fields) < 2 {
		return beacon.Detection{}, fmt.Errorf("advertisement line %q: want addr,rssi[,name]", line)
	}
	addr := strings.TrimSpace(fields[0])
	if addr == "" {
		return beacon.Detection{}, fmt.Errorf("advertisement line %q: empty addr", line)
	}
	d := beacon.Detection{Address: strings.ToUpper(addr), RSSI: MissingRSSI}
	if rssi, err := strconv.Atoi(strings.TrimSpace(fields[1])); err == nil {
		d.RSSI = rssi
	}
	if len(fields) == 3 {
		d.Name = strings.TrimSpace(fields[2])
	}
	return d, nil
}
