package inventory

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExternalAddress(t *testing.T) {
	tests := []struct {
		name   string
		inst   Instance
		wantIP string
		wantOK bool
	}{
		{"NoInterfaces", Instance{Name: "a"}, "", false},
		{"NoAccessConfigs", Instance{Name: "b", NetworkInterfaces: []NetworkInterface{{}}}, "", false},
		{"EmptyNatIP", Instance{Name: "c", NetworkInterfaces: []NetworkInterface{{AccessConfigs: []AccessConfig{{}}}}}, "", false},
		{"Primary", Instance{Name: "d", NetworkInterfaces: []NetworkInterface{
			{AccessConfigs: []AccessConfig{{NatIP: "203.0.113.10"}, {NatIP: "203.0.113.11"}}},
			{AccessConfigs: []AccessConfig{{NatIP: "203.0.113.12"}}},
		}}, "203.0.113.10", true},
		{"SecondaryInterfaceIgnored", Instance{Name: "e", NetworkInterfaces: []NetworkInterface{
			{},
			{AccessConfigs: []AccessConfig{{NatIP: "203.0.113.12"}}},
		}}, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ip, ok := tt.inst.ExternalAddress()
			assert.Equal(t, tt.wantIP, ip)
			assert.Equal(t, tt.wantOK, ok)
		})
	}
}

const inventoryYAML = `
zones:
  - name: us-central1-a
    instances:
      - name: db-1
        status: TERMINATED
  - name: europe-west1-b
    instances:
      - name: web-1
        status: STOPPED
        networkInterfaces:
          - accessConfigs:
              - natIP: 203.0.113.10
`

func TestLoadStatic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "inventory.yaml")
	require.NoError(t, os.WriteFile(path, []byte(inventoryYAML), 0o644))

	inv, err := LoadStatic(path)
	require.NoError(t, err)

	ctx := context.Background()
	zones, err := inv.ListZones(ctx, "p")
	require.NoError(t, err)
	assert.Equal(t, []string{"us-central1-a", "europe-west1-b"}, zones)

	instances, err := inv.ListInstances(ctx, "p", "europe-west1-b")
	require.NoError(t, err)
	require.Len(t, instances, 1)
	ip, ok := instances[0].ExternalAddress()
	assert.True(t, ok)
	assert.Equal(t, "203.0.113.10", ip)

	details, err := inv.GetInstance(ctx, "p", "europe-west1-b", "web-1")
	require.NoError(t, err)
	assert.Equal(t, "STOPPED", details.Status)
}

func TestLoadStaticErrors(t *testing.T) {
	_, err := LoadStatic(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "failed to read inventory file")

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("zones: [::"), 0o644))
	_, err = LoadStatic(path)
	assert.ErrorContains(t, err, "failed to parse inventory file")
}

func TestStaticControl(t *testing.T) {
	ctx := context.Background()
	inv := NewStatic(StaticZone{Name: "z1", Instances: []StaticInstance{{Instance: Instance{Name: "vm"}, Status: "STOPPED"}}})

	op, err := inv.StartInstance(ctx, "p", "z1", "vm")
	require.NoError(t, err)
	assert.NotEmpty(t, op.Name)

	status, ok := inv.Status("z1", "vm")
	assert.True(t, ok)
	assert.Equal(t, "RUNNING", status)

	_, err = inv.ResetInstance(ctx, "p", "z1", "missing")
	assert.Error(t, err)

	assert.Equal(t, 1, inv.CountOp(OpStartInstance))
	assert.Equal(t, 1, inv.CountOp(OpResetInstance))
	assert.Equal(t, []Call{
		{Op: OpStartInstance, Zone: "z1", Instance: "vm"},
		{Op: OpResetInstance, Zone: "z1", Instance: "missing"},
	}, inv.Calls())
}

func TestStaticFailOn(t *testing.T) {
	ctx := context.Background()
	inv := NewStatic(StaticZone{Name: "z1"})
	boom := errors.New("quota exceeded")

	inv.FailOn(OpListZones, boom)
	_, err := inv.ListZones(ctx, "p")
	assert.ErrorIs(t, err, boom)

	inv.FailOn(OpListZones, nil)
	zones, err := inv.ListZones(ctx, "p")
	assert.NoError(t, err)
	assert.Equal(t, []string{"z1"}, zones)
}

func TestStaticHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	inv := NewStatic(StaticZone{Name: "z1"})
	_, err := inv.ListInstances(ctx, "p", "z1")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, inv.Calls())
}
