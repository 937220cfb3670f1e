package kube

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"k8s.io/client-go/dynamic"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
)

// pickKubeconfigPath chooses the kubeconfig file to load.
// Priority:
//  1. explicitPath (flag or config)
//  2. KUBECONFIG env (first existing entry if multiple)
//  3. empty string (caller decides next steps)
func pickKubeconfigPath(explicitPath string) string {
	if strings.TrimSpace(explicitPath) != "" {
		return explicitPath
	}

	env := strings.TrimSpace(os.Getenv("KUBECONFIG"))
	if env == "" {
		return ""
	}

	// KUBECONFIG can contain multiple paths, separated by ';' on Windows and ':' on Linux.
	sep := ";"
	if strings.Contains(env, ":") && !strings.Contains(env, ";") {
		sep = ":"
	}

	for _, p := range strings.Split(env, sep) {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	// No existing entry found, return the raw env so errors are descriptive.
	return env
}

func pickContext(explicit string) string {
	if c := strings.TrimSpace(explicit); c != "" {
		return c
	}
	return strings.TrimSpace(os.Getenv("KUBE_CONTEXT"))
}

// LoadConfig returns a rest.Config from an explicit kubeconfig, KUBECONFIG,
// the in-cluster service account, or the default loading rules, in that order.
func LoadConfig(kubeconfigPath, kubeContext string) (*rest.Config, error) {
	chosen := pickKubeconfigPath(kubeconfigPath)
	overrides := &clientcmd.ConfigOverrides{CurrentContext: pickContext(kubeContext)}

	if chosen != "" {
		abs := chosen
		if a, err := filepath.Abs(chosen); err == nil {
			abs = a
		}

		rawCfg, err := clientcmd.LoadFromFile(abs)
		if err != nil {
			return nil, fmt.Errorf("load kube config: read kubeconfig file (path=%q): %w", abs, err)
		}

		cfg, err := clientcmd.NewDefaultClientConfig(*rawCfg, overrides).ClientConfig()
		if err != nil {
			return nil, fmt.Errorf("load kube config: kubeconfig (path=%q currentContext=%q context=%q): %w",
				abs, rawCfg.CurrentContext, overrides.CurrentContext, err)
		}
		return cfg, nil
	}

	if cfg, err := rest.InClusterConfig(); err == nil {
		return cfg, nil
	}

	rules := clientcmd.NewDefaultClientConfigLoadingRules()
	cfg, err := clientcmd.NewNonInteractiveDeferredLoadingClientConfig(rules, overrides).ClientConfig()
	if err != nil {
		return nil, fmt.Errorf("load kube config: default rules: %w", err)
	}
	return cfg, nil
}

// Clients bundles the typed and dynamic clients built from one rest.Config.
type Clients struct {
	Typed   kubernetes.Interface
	Dynamic dynamic.Interface
	Config  *rest.Config
}

func NewClients(kubeconfigPath, kubeContext string) (*Clients, error) {
	cfg, err := LoadConfig(kubeconfigPath, kubeContext)
	if err != nil {
		return nil, err
	}

	cs, err := kubernetes.NewForConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("create kube client: %w", err)
	}
	dyn, err := dynamic.NewForConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("create dynamic client: %w", err)
	}

	return &Clients{Typed: cs, Dynamic: dyn, Config: cfg}, nil
}
