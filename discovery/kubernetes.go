// MIT License
//
// Copyright (c) 2022-2026 Relay Contributors
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

package discovery

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/atomic"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/labels"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"

	"github.com/relaycore/relay/log"
)

// Kubernetes label/annotation contract (spec §6 "Cluster labels
// published"). ClusterLabel identifies pods belonging to a given
// cluster; MemberIDLabel/PortLabel/HostLabel/HostPrefixLabel carry the
// per-member fields needed to reconstruct a gossip peer address;
// KindsAnnotation lists the actor kinds a pod hosts.
const (
	ClusterLabel    = "cluster.proto.actor/cluster"
	MemberIDLabel   = "cluster.proto.actor/member-id"
	PortLabel       = "cluster.proto.actor/port"
	HostLabel       = "cluster.proto.actor/host"
	HostPrefixLabel = "cluster.proto.actor/host-prefix"
	KindsAnnotation = "cluster.proto.actor/kinds"
)

// KubernetesProvider discovers peers by listing pods labeled with
// ClusterLabel in a namespace, using the in-cluster service account.
type KubernetesProvider struct {
	mu sync.Mutex

	namespace   string
	clusterName string

	client kubernetes.Interface

	initialized *atomic.Bool
	registered  *atomic.Bool
	logger      log.Logger
}

var _ Provider = (*KubernetesProvider)(nil)

// NewKubernetesProvider builds a KubernetesProvider for the given
// namespace and cluster name (the value pods are labeled with under
// ClusterLabel).
func NewKubernetesProvider(namespace, clusterName string, logger log.Logger) *KubernetesProvider {
	if logger == nil {
		logger = log.DiscardLogger
	}
	return &KubernetesProvider{
		namespace:   namespace,
		clusterName: clusterName,
		initialized: atomic.NewBool(false),
		registered:  atomic.NewBool(false),
		logger:      logger,
	}
}

// SetConfig overrides the namespace/cluster name from config["namespace"]
// and config["cluster"], if present.
func (p *KubernetesProvider) SetConfig(config Config) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if ns, ok := config["namespace"]; ok && ns != "" {
		p.namespace = ns
	}
	if cl, ok := config["cluster"]; ok && cl != "" {
		p.clusterName = cl
	}
	if p.namespace == "" || p.clusterName == "" {
		return ErrInvalidConfig
	}
	return nil
}

func (p *KubernetesProvider) ID() string { return "kubernetes" }

// Initialize builds the in-cluster client. Pods are expected to run with
// a service account authorized to list pods in their own namespace.
func (p *KubernetesProvider) Initialize() error {
	if !p.initialized.CompareAndSwap(false, true) {
		return ErrAlreadyInitialized
	}

	cfg, err := rest.InClusterConfig()
	if err != nil {
		p.initialized.Store(false)
		return fmt.Errorf("discovery: kubernetes in-cluster config: %w", err)
	}
	client, err := kubernetes.NewForConfig(cfg)
	if err != nil {
		p.initialized.Store(false)
		return fmt.Errorf("discovery: kubernetes client: %w", err)
	}

	p.mu.Lock()
	p.client = client
	p.mu.Unlock()
	return nil
}

// Register is a no-op: membership in Kubernetes is the pod's own label
// set, applied at deploy time, not something this process asserts at
// runtime.
func (p *KubernetesProvider) Register() error {
	if !p.initialized.Load() {
		return ErrNotInitialized
	}
	if !p.registered.CompareAndSwap(false, true) {
		return ErrAlreadyRegistered
	}
	return nil
}

func (p *KubernetesProvider) Deregister() error {
	if !p.registered.CompareAndSwap(true, false) {
		return ErrNotRegistered
	}
	return nil
}

// DiscoverPeers lists running, ready pods labeled with ClusterLabel
// equal to this provider's cluster name, and reconstructs each one's
// gossip address from HostLabel/HostPrefixLabel and PortLabel. The list
// is not filtered against the local member: this node's own pod is
// included when it is ready and labeled.
func (p *KubernetesProvider) DiscoverPeers() ([]string, error) {
	if !p.initialized.Load() {
		return nil, ErrNotInitialized
	}

	p.mu.Lock()
	client := p.client
	namespace := p.namespace
	selector := labels.SelectorFromSet(map[string]string{ClusterLabel: p.clusterName}).String()
	p.mu.Unlock()

	pods, err := client.CoreV1().Pods(namespace).List(context.Background(), metav1.ListOptions{
		LabelSelector: selector,
	})
	if err != nil {
		return nil, fmt.Errorf("discovery: list kubernetes pods: %w", err)
	}

	peers := make([]string, 0, len(pods.Items))
	for i := range pods.Items {
		pod := &pods.Items[i]
		if !podReady(pod) {
			continue
		}
		addr, ok := podPeerAddress(pod)
		if !ok {
			continue
		}
		peers = append(peers, addr)
	}
	return peers, nil
}

func podReady(pod *corev1.Pod) bool {
	if pod.Status.Phase != corev1.PodRunning {
		return false
	}
	for _, c := range pod.Status.Conditions {
		if c.Type == corev1.PodReady {
			return c.Status == corev1.ConditionTrue
		}
	}
	return true
}

// podPeerAddress reconstructs "host:port" from a pod's labels: HostLabel
// takes precedence; otherwise HostPrefixLabel is combined with the pod IP
// the way a StatefulSet-backed headless service would need it.
func podPeerAddress(pod *corev1.Pod) (string, bool) {
	port, ok := pod.Labels[PortLabel]
	if !ok || port == "" {
		return "", false
	}

	host, ok := pod.Labels[HostLabel]
	if !ok || host == "" {
		if prefix, ok := pod.Labels[HostPrefixLabel]; ok && prefix != "" {
			host = prefix + pod.Status.PodIP
		} else {
			host = pod.Status.PodIP
		}
	}
	if host == "" {
		return "", false
	}
	return host + ":" + port, true
}
