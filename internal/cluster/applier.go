// Package cluster submits rendered workspace manifests to the Kubernetes API.
//
// Apply is deliberately best-effort and re-entrant: a resource that already
// exists counts as success, a failing document never aborts the rest of the
// batch, and nothing is rolled back. Re-running a partially applied batch
// converges instead of erroring.
package cluster

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	networkingv1 "k8s.io/api/networking/v1"
	rbacv1 "k8s.io/api/rbac/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"sigs.k8s.io/yaml"
)

// Outcome is the per-document result of an apply. The skipped and conflict
// cases are first-class values, not errors: both are expected during
// re-entrant provisioning.
type Outcome string

const (
	OutcomeCreated  Outcome = "created"
	OutcomeConflict Outcome = "conflict" // already existed, treated as success
	OutcomeSkipped  Outcome = "skipped"  // unrecognised kind
	OutcomeFailed   Outcome = "failed"
)

// Result describes what happened to a single manifest document.
type Result struct {
	Kind      string
	Name      string
	Namespace string
	Outcome   Outcome
	Err       error
}

// Succeeded reports whether the document is applied (created or already there).
func (r Result) Succeeded() bool {
	return r.Outcome == OutcomeCreated || r.Outcome == OutcomeConflict
}

// ApplyError signals that one or more documents in a batch failed. It is
// returned after the whole batch has been processed; the per-document
// results carry the detail.
type ApplyError struct {
	Failed int
	Total  int
}

func (e *ApplyError) Error() string {
	return fmt.Sprintf("cluster: %d of %d manifest documents failed to apply", e.Failed, e.Total)
}

// Applier creates workspace resources through a Kubernetes clientset.
type Applier struct {
	clients kubernetes.Interface
	logger  *slog.Logger
}

// New creates an applier over a clientset.
func New(clients kubernetes.Interface, logger *slog.Logger) *Applier {
	return &Applier{clients: clients, logger: logger}
}

// Apply splits multi-document YAML on the --- separator and creates each
// recognised resource. AlreadyExists responses are conflicts, counted as
// success. Any other failure marks that document failed and processing
// continues; if any document failed the returned error is an *ApplyError.
func (a *Applier) Apply(ctx context.Context, manifests string) ([]Result, error) {
	docs := SplitDocuments(manifests)
	results := make([]Result, 0, len(docs))

	failed := 0
	for _, doc := range docs {
		res := a.applyDocument(ctx, doc)
		results = append(results, res)

		switch res.Outcome {
		case OutcomeConflict:
			a.logger.Debug("resource already exists",
				"kind", res.Kind, "namespace", res.Namespace, "name", res.Name)
		case OutcomeSkipped:
			a.logger.Info("skipping unrecognised resource kind", "kind", res.Kind)
		case OutcomeFailed:
			failed++
			a.logger.Warn("failed to apply resource",
				"kind", res.Kind, "namespace", res.Namespace, "name", res.Name, "error", res.Err)
		}
	}

	if failed > 0 {
		return results, &ApplyError{Failed: failed, Total: len(docs)}
	}
	return results, nil
}

// DeleteNamespace removes a tenant namespace. The platform cascades deletion
// of everything inside it. A namespace that is already gone is not an error.
func (a *Applier) DeleteNamespace(ctx context.Context, name string) error {
	err := a.clients.CoreV1().Namespaces().Delete(ctx, name, metav1.DeleteOptions{})
	if err != nil && !apierrors.IsNotFound(err) {
		return fmt.Errorf("cluster: delete namespace %s: %w", name, err)
	}
	return nil
}

// Ping verifies API server connectivity. Used by health checks.
func (a *Applier) Ping(ctx context.Context) error {
	_, err := a.clients.Discovery().ServerVersion()
	return err
}

func (a *Applier) applyDocument(ctx context.Context, doc string) Result {
	var tm metav1.TypeMeta
	if err := yaml.Unmarshal([]byte(doc), &tm); err != nil {
		return Result{Outcome: OutcomeFailed, Err: fmt.Errorf("decode document: %w", err)}
	}

	switch tm.Kind {
	case "Namespace":
		var obj corev1.Namespace
		return a.create(doc, &obj, &obj.ObjectMeta, tm.Kind, func() error {
			_, err := a.clients.CoreV1().Namespaces().Create(ctx, &obj, metav1.CreateOptions{})
			return err
		})
	case "ResourceQuota":
		var obj corev1.ResourceQuota
		return a.create(doc, &obj, &obj.ObjectMeta, tm.Kind, func() error {
			_, err := a.clients.CoreV1().ResourceQuotas(obj.Namespace).Create(ctx, &obj, metav1.CreateOptions{})
			return err
		})
	case "LimitRange":
		var obj corev1.LimitRange
		return a.create(doc, &obj, &obj.ObjectMeta, tm.Kind, func() error {
			_, err := a.clients.CoreV1().LimitRanges(obj.Namespace).Create(ctx, &obj, metav1.CreateOptions{})
			return err
		})
	case "NetworkPolicy":
		var obj networkingv1.NetworkPolicy
		return a.create(doc, &obj, &obj.ObjectMeta, tm.Kind, func() error {
			_, err := a.clients.NetworkingV1().NetworkPolicies(obj.Namespace).Create(ctx, &obj, metav1.CreateOptions{})
			return err
		})
	case "ServiceAccount":
		var obj corev1.ServiceAccount
		return a.create(doc, &obj, &obj.ObjectMeta, tm.Kind, func() error {
			_, err := a.clients.CoreV1().ServiceAccounts(obj.Namespace).Create(ctx, &obj, metav1.CreateOptions{})
			return err
		})
	case "Role":
		var obj rbacv1.Role
		return a.create(doc, &obj, &obj.ObjectMeta, tm.Kind, func() error {
			_, err := a.clients.RbacV1().Roles(obj.Namespace).Create(ctx, &obj, metav1.CreateOptions{})
			return err
		})
	case "RoleBinding":
		var obj rbacv1.RoleBinding
		return a.create(doc, &obj, &obj.ObjectMeta, tm.Kind, func() error {
			_, err := a.clients.RbacV1().RoleBindings(obj.Namespace).Create(ctx, &obj, metav1.CreateOptions{})
			return err
		})
	case "Secret":
		var obj corev1.Secret
		return a.create(doc, &obj, &obj.ObjectMeta, tm.Kind, func() error {
			_, err := a.clients.CoreV1().Secrets(obj.Namespace).Create(ctx, &obj, metav1.CreateOptions{})
			return err
		})
	case "Deployment":
		var obj appsv1.Deployment
		return a.create(doc, &obj, &obj.ObjectMeta, tm.Kind, func() error {
			_, err := a.clients.AppsV1().Deployments(obj.Namespace).Create(ctx, &obj, metav1.CreateOptions{})
			return err
		})
	case "StatefulSet":
		var obj appsv1.StatefulSet
		return a.create(doc, &obj, &obj.ObjectMeta, tm.Kind, func() error {
			_, err := a.clients.AppsV1().StatefulSets(obj.Namespace).Create(ctx, &obj, metav1.CreateOptions{})
			return err
		})
	case "Service":
		var obj corev1.Service
		return a.create(doc, &obj, &obj.ObjectMeta, tm.Kind, func() error {
			_, err := a.clients.CoreV1().Services(obj.Namespace).Create(ctx, &obj, metav1.CreateOptions{})
			return err
		})
	case "ConfigMap":
		var obj corev1.ConfigMap
		return a.create(doc, &obj, &obj.ObjectMeta, tm.Kind, func() error {
			_, err := a.clients.CoreV1().ConfigMaps(obj.Namespace).Create(ctx, &obj, metav1.CreateOptions{})
			return err
		})
	case "PersistentVolumeClaim":
		var obj corev1.PersistentVolumeClaim
		return a.create(doc, &obj, &obj.ObjectMeta, tm.Kind, func() error {
			_, err := a.clients.CoreV1().PersistentVolumeClaims(obj.Namespace).Create(ctx, &obj, metav1.CreateOptions{})
			return err
		})
	case "Ingress":
		var obj networkingv1.Ingress
		return a.create(doc, &obj, &obj.ObjectMeta, tm.Kind, func() error {
			_, err := a.clients.NetworkingV1().Ingresses(obj.Namespace).Create(ctx, &obj, metav1.CreateOptions{})
			return err
		})
	default:
		return Result{Kind: tm.Kind, Outcome: OutcomeSkipped}
	}
}

// create decodes the document into obj, runs the creation call, and maps
// AlreadyExists to a successful conflict outcome.
func (a *Applier) create(doc string, obj interface{}, meta metav1.Object, kind string, createFn func() error) Result {
	if err := yaml.Unmarshal([]byte(doc), obj); err != nil {
		return Result{Kind: kind, Outcome: OutcomeFailed, Err: fmt.Errorf("decode %s: %w", kind, err)}
	}

	res := Result{Kind: kind, Name: meta.GetName(), Namespace: meta.GetNamespace()}

	err := createFn()
	switch {
	case err == nil:
		res.Outcome = OutcomeCreated
	case apierrors.IsAlreadyExists(err):
		res.Outcome = OutcomeConflict
	default:
		res.Outcome = OutcomeFailed
		res.Err = err
	}
	return res
}

// SplitDocuments splits multi-document YAML on the standard --- separator
// line, dropping empty documents.
func SplitDocuments(manifests string) []string {
	var docs []string
	for _, doc := range strings.Split("\n"+manifests, "\n---") {
		if strings.TrimSpace(doc) == "" {
			continue
		}
		docs = append(docs, strings.TrimPrefix(doc, "\n"))
	}
	return docs
}
