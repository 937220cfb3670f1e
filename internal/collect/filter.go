package collect

import "kagent/internal/model"

// SystemNamespaces are skipped by backups, cost quotas and, by default, security scans.
var SystemNamespaces = []string{"kube-system", "kube-public", "kube-node-lease"}

func IsSystemNamespace(ns string) bool {
	for _, s := range SystemNamespaces {
		if s == ns {
			return true
		}
	}
	return false
}

// InScope returns true when ns is within the collection's namespace scope.
// If inv.ScanNamespaces is empty, all namespaces are in scope.
func InScope(ns string, inv *model.Inventory) bool {
	if len(inv.ScanNamespaces) == 0 {
		return true
	}
	for _, n := range inv.ScanNamespaces {
		if n == ns {
			return true
		}
	}
	return false
}
