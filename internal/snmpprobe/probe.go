// Package snmpprobe reads a device's SNMP system group and guesses its
// classification, so devices added by hand can still be matched to a
// template.
package snmpprobe

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gosnmp/gosnmp"
)

const (
	oidSysDescr    = ".1.3.6.1.2.1.1.1.0"
	oidSysObjectID = ".1.3.6.1.2.1.1.2.0"
	oidSysName     = ".1.3.6.1.2.1.1.5.0"
	oidSysLocation = ".1.3.6.1.2.1.1.6.0"
)

var (
	ErrNoSNMPData = errors.New("no SNMP data returned")
	ErrSNMPError  = errors.New("SNMP error")
)

// SystemInfo is the subset of the system group used for classification.
type SystemInfo struct {
	Target      string `json:"target"`
	Name        string `json:"sys_name,omitempty"`
	Description string `json:"sys_descr,omitempty"`
	ObjectID    string `json:"sys_object_id,omitempty"`
	Location    string `json:"sys_location,omitempty"`
}

// Config holds SNMPv2c connection settings.
type Config struct {
	Community string
	Port      uint16
	Timeout   time.Duration
	Retries   int
}

// Prober queries devices over SNMPv2c.
type Prober struct {
	cfg Config
}

func NewProber(cfg Config) *Prober {
	if cfg.Community == "" {
		cfg.Community = "public"
	}
	if cfg.Port == 0 {
		cfg.Port = 161
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Second
	}
	return &Prober{cfg: cfg}
}

// Probe fetches the system group from target.
func (p *Prober) Probe(ctx context.Context, target string) (*SystemInfo, error) {
	client := &gosnmp.GoSNMP{
		Target:    target,
		Port:      p.cfg.Port,
		Community: p.cfg.Community,
		Version:   gosnmp.Version2c,
		Timeout:   p.cfg.Timeout,
		Retries:   p.cfg.Retries,
		MaxOids:   gosnmp.MaxOids,
		Context:   ctx,
	}
	if err := client.Connect(); err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", target, err)
	}
	defer client.Conn.Close()

	result, err := client.Get([]string{oidSysDescr, oidSysObjectID, oidSysName, oidSysLocation})
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", target, err)
	}
	if result.Error != gosnmp.NoError {
		return nil, fmt.Errorf("%w from %s: %s", ErrSNMPError, target, result.Error)
	}

	info := &SystemInfo{Target: target}
	if !fill(info, result.Variables) {
		return nil, fmt.Errorf("%s: %w", target, ErrNoSNMPData)
	}
	return info, nil
}

func fill(info *SystemInfo, vars []gosnmp.SnmpPDU) bool {
	found := false
	for _, v := range vars {
		if v.Type == gosnmp.NoSuchObject || v.Type == gosnmp.NoSuchInstance {
			continue
		}
		found = true
		switch v.Name {
		case oidSysDescr:
			info.Description = octetString(v)
		case oidSysObjectID:
			if v.Type == gosnmp.ObjectIdentifier {
				info.ObjectID, _ = v.Value.(string)
			}
		case oidSysName:
			info.Name = octetString(v)
		case oidSysLocation:
			info.Location = octetString(v)
		}
	}
	return found
}

func octetString(v gosnmp.SnmpPDU) string {
	if v.Type != gosnmp.OctetString {
		return ""
	}
	b, _ := v.Value.([]byte)
	return string(b)
}
