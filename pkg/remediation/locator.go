package remediation

import (
	"context"
	"iter"
	"log/slog"
	"time"

	"github.com/leonardo-meireles/vm-remediator/pkg/errors"
	"github.com/leonardo-meireles/vm-remediator/pkg/inventory"
	"github.com/leonardo-meireles/vm-remediator/pkg/metrics"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

// Locator finds the instance whose primary external address is the target.
type Locator struct {
	client      inventory.Client
	project     string
	target      string
	concurrency int
	metrics     *metrics.Metrics
}

// NewLocator creates a locator. concurrency bounds how many zone listings
// are fetched at once; 1 scans zones strictly one after another.
func NewLocator(client inventory.Client, project, target string, concurrency int, m *metrics.Metrics) *Locator {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Locator{
		client:      client,
		project:     project,
		target:      target,
		concurrency: concurrency,
		metrics:     m,
	}
}

type candidate struct {
	zone     string
	instance inventory.Instance
}

// Locate returns the first match in zone enumeration order, or a NotFound
// error once every zone has been examined.
func (l *Locator) Locate(ctx context.Context) (InstanceRef, error) {
	ctx, span := tracer.Start(ctx, "remediation.locate")
	defer span.End()

	start := time.Now()
	defer func() { l.metrics.ObserveLocate(time.Since(start)) }()

	slog.Info("locate_start", "project", l.project, "target_address", l.target, "concurrency", l.concurrency)

	zones, err := l.client.ListZones(ctx, l.project)
	l.metrics.RemoteCall(inventory.OpListZones, err)
	if err != nil {
		span.RecordError(err)
		return InstanceRef{}, errors.New(errors.KindRemoteCall, inventory.OpListZones, err)
	}

	examined := 0
	for c, err := range l.candidates(ctx, zones) {
		if err != nil {
			span.RecordError(err)
			slog.Error("locate_zone_failed", "zone", c.zone, "error", err)
			return InstanceRef{}, errors.New(errors.KindRemoteCall, inventory.OpListInstances, errors.Wrap(err, "zone "+c.zone))
		}
		examined++
		if ip, ok := c.instance.ExternalAddress(); ok && ip == l.target {
			ref := InstanceRef{Name: c.instance.Name, Zone: c.zone}
			span.SetAttributes(attribute.String("instance", ref.Name), attribute.String("zone", ref.Zone))
			slog.Info("locate_match", "instance", ref.Name, "zone", ref.Zone, "instances_examined", examined)
			return ref, nil
		}
	}

	slog.Warn("locate_not_found", "target_address", l.target, "zone_count", len(zones), "instances_examined", examined)
	return InstanceRef{}, errors.Newf(errors.KindNotFound, "locate", "no instance with external address %s in %d zones", l.target, len(zones))
}

// candidates yields every (zone, instance) pair in enumeration order and
// stops producing as soon as the consumer stops ranging. A listing error is
// yielded once, carrying the failing zone, and ends the sequence.
func (l *Locator) candidates(ctx context.Context, zones []string) iter.Seq2[candidate, error] {
	if l.concurrency > 1 && len(zones) > 1 {
		return l.prefetched(ctx, zones)
	}
	return func(yield func(candidate, error) bool) {
		for _, zone := range zones {
			instances, err := l.listInstances(ctx, zone)
			if err != nil {
				yield(candidate{zone: zone}, err)
				return
			}
			for _, inst := range instances {
				if !yield(candidate{zone: zone, instance: inst}, nil) {
					return
				}
			}
		}
	}
}

type zoneListing struct {
	instances []inventory.Instance
	err       error
}

// prefetched lists up to l.concurrency zones at a time but yields strictly in
// zone order, so the first match is the same one a sequential scan finds.
// An error in zone i only surfaces if no earlier zone produced a match.
// Outstanding listings are cancelled once the consumer stops.
func (l *Locator) prefetched(ctx context.Context, zones []string) iter.Seq2[candidate, error] {
	return func(yield func(candidate, error) bool) {
		ctx, cancel := context.WithCancel(ctx)

		results := make([]chan zoneListing, len(zones))
		for i := range results {
			results[i] = make(chan zoneListing, 1)
		}

		done := make(chan struct{})
		go func() {
			defer close(done)
			var g errgroup.Group
			g.SetLimit(l.concurrency)
			for i, zone := range zones {
				if err := ctx.Err(); err != nil {
					results[i] <- zoneListing{err: err}
					continue
				}
				g.Go(func() error {
					instances, err := l.listInstances(ctx, zone)
					results[i] <- zoneListing{instances: instances, err: err}
					return nil
				})
			}
			_ = g.Wait()
		}()

		defer func() {
			cancel()
			<-done
		}()

		for i, zone := range zones {
			res := <-results[i]
			if res.err != nil {
				yield(candidate{zone: zone}, res.err)
				return
			}
			for _, inst := range res.instances {
				if !yield(candidate{zone: zone, instance: inst}, nil) {
					return
				}
			}
		}
	}
}

func (l *Locator) listInstances(ctx context.Context, zone string) ([]inventory.Instance, error) {
	instances, err := l.client.ListInstances(ctx, l.project, zone)
	l.metrics.RemoteCall(inventory.OpListInstances, err)
	if err == nil {
		slog.Debug("zone_scanned", "zone", zone, "instance_count", len(instances))
	}
	return instances, err
}
