package inventory

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/leonardo-meireles/vm-remediator/pkg/errors"
	"gopkg.in/yaml.v3"
)

// StaticInstance is an instance entry in a static inventory file.
type StaticInstance struct {
	Instance `yaml:",inline"`
	Status   string `yaml:"status"`
}

// StaticZone is a zone entry in a static inventory file.
type StaticZone struct {
	Name      string           `yaml:"name"`
	Instances []StaticInstance `yaml:"instances"`
}

// Call records one request received by a Static client.
type Call struct {
	Op       string
	Zone     string
	Instance string
}

// Static is an in-memory inventory. Reset and start update the stored
// status the way the provider eventually would. It records every call and
// can be told to fail a given operation.
type Static struct {
	mu       sync.Mutex
	zones    []StaticZone
	calls    []Call
	failures map[string]error
	opSeq    int
}

// NewStatic builds an inventory from zone definitions. Zone order is
// preserved as enumeration order.
func NewStatic(zones ...StaticZone) *Static {
	return &Static{zones: zones, failures: map[string]error{}}
}

// LoadStatic reads a YAML inventory file:
//
//	zones:
//	  - name: us-central1-a
//	    instances:
//	      - name: web-1
//	        status: RUNNING
//	        networkInterfaces:
//	          - accessConfigs:
//	              - natIP: 203.0.113.10
func LoadStatic(path string) (*Static, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read inventory file")
	}

	var doc struct {
		Zones []StaticZone `yaml:"zones"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrap(err, "failed to parse inventory file")
	}

	slog.Info("static_inventory_loaded", "path", path, "zone_count", len(doc.Zones))
	return NewStatic(doc.Zones...), nil
}

// FailOn makes every later call of op return err. A nil err clears it.
func (s *Static) FailOn(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failures, op)
		return
	}
	s.failures[op] = err
}

// FailOnZone is FailOn restricted to calls against one zone.
func (s *Static) FailOnZone(op, zone string, err error) {
	s.FailOn(op+"@"+zone, err)
}

// Calls returns a copy of the recorded calls in order.
func (s *Static) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Call, len(s.calls))
	copy(out, s.calls)
	return out
}

// CountOp returns how many times op was called.
func (s *Static) CountOp(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		if c.Op == op {
			n++
		}
	}
	return n
}

// Status returns the stored status of an instance.
func (s *Static) Status(zone, name string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inst := s.find(zone, name)
	if inst == nil {
		return "", false
	}
	return inst.Status, true
}

func (s *Static) ListZones(ctx context.Context, project string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record(ctx, OpListZones, "", ""); err != nil {
		return nil, err
	}
	names := make([]string, 0, len(s.zones))
	for _, z := range s.zones {
		names = append(names, z.Name)
	}
	return names, nil
}

func (s *Static) ListInstances(ctx context.Context, project, zone string) ([]Instance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record(ctx, OpListInstances, zone, ""); err != nil {
		return nil, err
	}
	for _, z := range s.zones {
		if z.Name != zone {
			continue
		}
		out := make([]Instance, 0, len(z.Instances))
		for _, inst := range z.Instances {
			out = append(out, inst.Instance)
		}
		return out, nil
	}
	return nil, fmt.Errorf("zone %s not found", zone)
}

func (s *Static) GetInstance(ctx context.Context, project, zone, name string) (*InstanceDetails, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record(ctx, OpGetInstance, zone, name); err != nil {
		return nil, err
	}
	inst := s.find(zone, name)
	if inst == nil {
		return nil, fmt.Errorf("instance %s/%s not found", zone, name)
	}
	if inst.Status == "" {
		return nil, fmt.Errorf("empty instance details for %s", name)
	}
	return &InstanceDetails{Name: inst.Name, Status: inst.Status}, nil
}

func (s *Static) ResetInstance(ctx context.Context, project, zone, name string) (*Operation, error) {
	return s.control(ctx, OpResetInstance, zone, name)
}

func (s *Static) StartInstance(ctx context.Context, project, zone, name string) (*Operation, error) {
	return s.control(ctx, OpStartInstance, zone, name)
}

func (s *Static) control(ctx context.Context, op, zone, name string) (*Operation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record(ctx, op, zone, name); err != nil {
		return nil, err
	}
	inst := s.find(zone, name)
	if inst == nil {
		return nil, fmt.Errorf("instance %s/%s not found", zone, name)
	}
	inst.Status = "RUNNING"
	s.opSeq++
	return &Operation{Name: fmt.Sprintf("operation-static-%d", s.opSeq), Status: "DONE"}, nil
}

// record must be called with mu held.
func (s *Static) record(ctx context.Context, op, zone, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.calls = append(s.calls, Call{Op: op, Zone: zone, Instance: name})
	if err := s.failures[op]; err != nil {
		return err
	}
	return s.failures[op+"@"+zone]
}

// find must be called with mu held.
func (s *Static) find(zone, name string) *StaticInstance {
	for zi := range s.zones {
		if s.zones[zi].Name != zone {
			continue
		}
		for ii := range s.zones[zi].Instances {
			if s.zones[zi].Instances[ii].Name == name {
				return &s.zones[zi].Instances[ii]
			}
		}
	}
	return nil
}
