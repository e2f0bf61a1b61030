// Package inventory is the read and control surface of the compute provider:
// zone listing, instance listing, status reads, and reset/start commands.
package inventory

import "context"

// AccessConfig is an external NAT mapping on a network interface.
type AccessConfig struct {
	NatIP string `yaml:"natIP" json:"natIP"`
}

// NetworkInterface holds the access configs attached to one NIC.
type NetworkInterface struct {
	AccessConfigs []AccessConfig `yaml:"accessConfigs" json:"accessConfigs"`
}

// Instance is the subset of an instance listing the locator needs.
type Instance struct {
	Name              string             `yaml:"name" json:"name"`
	NetworkInterfaces []NetworkInterface `yaml:"networkInterfaces" json:"networkInterfaces"`
}

// ExternalAddress returns the NAT IP of the primary access config on the
// primary interface. Any missing level reports ok=false.
func (i Instance) ExternalAddress() (string, bool) {
	if len(i.NetworkInterfaces) == 0 {
		return "", false
	}
	nic := i.NetworkInterfaces[0]
	if len(nic.AccessConfigs) == 0 {
		return "", false
	}
	ip := nic.AccessConfigs[0].NatIP
	if ip == "" {
		return "", false
	}
	return ip, true
}

// InstanceDetails is a fresh read of one instance.
type InstanceDetails struct {
	Name   string
	Status string
}

// Operation acknowledges a submitted control command.
type Operation struct {
	Name   string
	Status string
}

// Client is the provider API consumed by the remediation workflow.
// Every method is a remote call and may fail.
type Client interface {
	ListZones(ctx context.Context, project string) ([]string, error)
	ListInstances(ctx context.Context, project, zone string) ([]Instance, error)
	GetInstance(ctx context.Context, project, zone, name string) (*InstanceDetails, error)
	ResetInstance(ctx context.Context, project, zone, name string) (*Operation, error)
	StartInstance(ctx context.Context, project, zone, name string) (*Operation, error)
}

// Operation names, used in logs, metrics and failure injection.
const (
	OpListZones     = "list_zones"
	OpListInstances = "list_instances"
	OpGetInstance   = "get_instance"
	OpResetInstance = "reset_instance"
	OpStartInstance = "start_instance"
)
