package inventory

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/leonardo-meireles/vm-remediator/pkg/errors"
	compute "google.golang.org/api/compute/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// GCE talks to the Compute Engine v1 API.
type GCE struct {
	svc *compute.Service
}

// NewGCE creates a Compute Engine client scoped for cloud-platform management.
// Credentials come from credentialsFile when set, otherwise from Application
// Default Credentials.
func NewGCE(ctx context.Context, credentialsFile string) (*GCE, error) {
	slog.Info("gce_client_init", "credentials_file", credentialsFile != "")

	opts := []option.ClientOption{option.WithScopes(compute.CloudPlatformScope)}
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	svc, err := compute.NewService(ctx, opts...)
	if err != nil {
		slog.Error("gce_client_init_failed", "error", err)
		return nil, errors.Wrap(err, "failed to create compute service")
	}

	slog.Info("gce_client_created")
	return &GCE{svc: svc}, nil
}

// ListZones lists every zone in the project, in provider order.
func (g *GCE) ListZones(ctx context.Context, project string) ([]string, error) {
	var zones []string
	err := g.svc.Zones.List(project).
		Fields("items(name)", "nextPageToken").
		Pages(ctx, func(page *compute.ZoneList) error {
			for _, z := range page.Items {
				if z != nil && z.Name != "" {
					zones = append(zones, z.Name)
				}
			}
			return nil
		})
	if err != nil {
		slog.Error("gce_list_zones_failed", "project", project, "error", err)
		return nil, errors.Wrap(err, "failed to list zones")
	}

	slog.Debug("gce_list_zones_complete", "project", project, "zone_count", len(zones))
	return zones, nil
}

// ListInstances lists the instances of one zone with only the fields needed
// for address matching.
func (g *GCE) ListInstances(ctx context.Context, project, zone string) ([]Instance, error) {
	var out []Instance
	err := g.svc.Instances.List(project, zone).
		Fields(googleapi.Field("items(name,networkInterfaces/accessConfigs/natIP)"), "nextPageToken").
		Pages(ctx, func(page *compute.InstanceList) error {
			for _, inst := range page.Items {
				if inst == nil {
					continue
				}
				out = append(out, fromCompute(inst))
			}
			return nil
		})
	if err != nil {
		slog.Error("gce_list_instances_failed", "project", project, "zone", zone, "error", err)
		return nil, errors.Wrap(err, "failed to list instances")
	}

	slog.Debug("gce_list_instances_complete", "zone", zone, "instance_count", len(out))
	return out, nil
}

// GetInstance reads the current status of one instance.
func (g *GCE) GetInstance(ctx context.Context, project, zone, name string) (*InstanceDetails, error) {
	inst, err := g.svc.Instances.Get(project, zone, name).Context(ctx).Do()
	if err != nil {
		slog.Error("gce_get_instance_failed", "zone", zone, "instance", name, "error", err)
		return nil, errors.Wrap(err, "failed to get instance")
	}
	if inst == nil || inst.Status == "" {
		return nil, fmt.Errorf("empty instance details for %s", name)
	}

	slog.Debug("gce_instance_details", "zone", zone, "instance", name, "status", inst.Status)
	return &InstanceDetails{Name: inst.Name, Status: inst.Status}, nil
}

// ResetInstance submits a hard reset.
func (g *GCE) ResetInstance(ctx context.Context, project, zone, name string) (*Operation, error) {
	op, err := g.svc.Instances.Reset(project, zone, name).Context(ctx).Do()
	return ack(op, err, "reset", zone, name)
}

// StartInstance submits a start.
func (g *GCE) StartInstance(ctx context.Context, project, zone, name string) (*Operation, error) {
	op, err := g.svc.Instances.Start(project, zone, name).Context(ctx).Do()
	return ack(op, err, "start", zone, name)
}

func ack(op *compute.Operation, err error, verb, zone, name string) (*Operation, error) {
	if err != nil {
		slog.Error("gce_"+verb+"_failed", "zone", zone, "instance", name, "error", err)
		return nil, errors.Wrap(err, "failed to "+verb+" instance")
	}
	if op == nil {
		return nil, fmt.Errorf("%s of %s returned no operation", verb, name)
	}
	if op.Error != nil && len(op.Error.Errors) > 0 {
		msgs := make([]string, 0, len(op.Error.Errors))
		for _, e := range op.Error.Errors {
			if e != nil {
				msgs = append(msgs, e.Code+": "+e.Message)
			}
		}
		return nil, fmt.Errorf("%s operation %s failed: %s", verb, op.Name, strings.Join(msgs, "; "))
	}

	slog.Info("gce_"+verb+"_submitted", "zone", zone, "instance", name, "operation", op.Name, "status", op.Status)
	return &Operation{Name: op.Name, Status: op.Status}, nil
}

func fromCompute(inst *compute.Instance) Instance {
	out := Instance{Name: inst.Name}
	for _, nic := range inst.NetworkInterfaces {
		var n NetworkInterface
		if nic != nil {
			for _, ac := range nic.AccessConfigs {
				if ac != nil {
					n.AccessConfigs = append(n.AccessConfigs, AccessConfig{NatIP: ac.NatIP})
				} else {
					n.AccessConfigs = append(n.AccessConfigs, AccessConfig{})
				}
			}
		}
		out.NetworkInterfaces = append(out.NetworkInterfaces, n)
	}
	return out
}
