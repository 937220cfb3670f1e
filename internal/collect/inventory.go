package collect

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/client-go/kubernetes"

	"kagent/internal/model"
)

type collectorFunc func(ctx context.Context, client kubernetes.Interface, inv *model.Inventory) error

type namedCollector struct {
	name string
	fn   collectorFunc
}

var inventoryCollectors = []namedCollector{
	{"namespaces", Namespaces},
	{"nodes", Nodes},
	{"pods", Pods},
	{"networkpolicies", NetworkPolicies},
	{"secrets", Secrets},
	{"resourcequotas", ResourceQuotas},
	{"hpas", HPAs},
	{"deployments", Deployments},
	{"clusterrolebindings", ClusterRoleBindings},
	{"pvcs", PVCs},
}

// Inventory runs every collector in parallel. Each collector writes only its
// own slice of inv. Permission and missing-API errors become CollectorSkips;
// anything else fails the collection.
func Inventory(ctx context.Context, client kubernetes.Interface, namespaces []string, logger *zap.Logger) (*model.Inventory, error) {
	inv := model.NewInventory(namespaces)

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for _, c := range inventoryCollectors {
		g.Go(func() error {
			err := c.fn(gctx, client, inv)
			if err == nil {
				return nil
			}
			if skip, ok := skipFor(c.name, err); ok {
				logger.Warn("collector skipped", zap.String("collector", c.name), zap.Error(err))
				mu.Lock()
				inv.CollectorSkips = append(inv.CollectorSkips, skip)
				mu.Unlock()
				return nil
			}
			return fmt.Errorf("collect %s: %w", c.name, err)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return inv, nil
}

func skipFor(name string, err error) (model.CollectorSkip, bool) {
	rbac := apierrors.IsForbidden(err) || apierrors.IsUnauthorized(err)
	if !rbac && !apierrors.IsNotFound(err) {
		return model.CollectorSkip{}, false
	}
	return model.CollectorSkip{Name: name, Reason: err.Error(), RBAC: rbac}, true
}
