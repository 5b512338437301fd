package controller

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/log"

	v1 "github.com/veilbase/sealstore/api/v1"
	archivecassandra "github.com/veilbase/sealstore/internal/archive/cassandra"
	archivemock "github.com/veilbase/sealstore/internal/archive/mock"
	archiveredis "github.com/veilbase/sealstore/internal/archive/redis"
	oraclemock "github.com/veilbase/sealstore/internal/oracle/mock"
	"github.com/veilbase/sealstore/internal/vault"
)

// SealStoreReconciler reconciles a SealStore object, holding one vault per
// resource. Until a production oracle client exists the vaults are wired to
// the mock oracle configured from the resource spec.
type SealStoreReconciler struct {
	client.Client
	Scheme *runtime.Scheme
	vaults map[string]*vault.SealedVault
}

// +kubebuilder:rbac:groups=vault.veilbase.io,resources=sealstores,verbs=get;list;watch;create;update;patch;delete
// +kubebuilder:rbac:groups=vault.veilbase.io,resources=sealstores/status,verbs=get;update;patch

func (r *SealStoreReconciler) Reconcile(ctx context.Context, req ctrl.Request) (ctrl.Result, error) {
	log := log.FromContext(ctx)

	var ss v1.SealStore
	if err := r.Get(ctx, req.NamespacedName, &ss); err != nil {
		log.Error(err, "unable to fetch SealStore")
		return ctrl.Result{}, client.IgnoreNotFound(err)
	}

	vaultKey := req.NamespacedName.String()
	if _, exists := r.vaults[vaultKey]; !exists {
		oracle := oraclemock.NewOracle(ss.Spec.OracleAddress, ss.Spec.OracleFee)
		archive, err := buildArchive(&ss)
		if err != nil {
			log.Error(err, "failed to build archive")
			return ctrl.Result{}, err
		}

		config := vault.DefaultConfig()
		config.Oracle.Address = ss.Spec.OracleAddress
		config.Limits.MaxBatchSize = ss.Spec.MaxBatchSize

		v, err := vault.NewSealedVault(oracle, archive, config, vaultKey, prometheus.NewRegistry())
		if err != nil {
			log.Error(err, "failed to initialize vault")
			return ctrl.Result{}, err
		}
		r.vaults[vaultKey] = v
		log.Info("Initialized new vault", "vault", vaultKey)
	}

	ss.Status.Ready = true
	ss.Status.TotalValues = r.vaults[vaultKey].TotalValues()
	ss.Status.LastReconciledTime = &metav1.Time{Time: time.Now()}
	if err := r.Status().Update(ctx, &ss); err != nil {
		log.Error(err, "failed to update SealStore status")
		return ctrl.Result{}, err
	}

	return ctrl.Result{}, nil
}

// buildArchive selects the archive backend from the resource spec
func buildArchive(ss *v1.SealStore) (vault.Archive, error) {
	switch ss.Spec.ArchiveBackend {
	case "redis":
		db := 0
		if raw, ok := ss.Spec.ArchiveConfig["db"]; ok {
			parsed, err := strconv.Atoi(raw)
			if err != nil {
				return nil, err
			}
			db = parsed
		}
		return archiveredis.NewArchive(ss.Spec.ArchiveConfig["addr"], db), nil
	case "cassandra":
		config := vault.DefaultConfig()
		config.Archive.Backend = "cassandra"
		config.Archive.CassandraHosts = strings.Split(ss.Spec.ArchiveConfig["hosts"], ",")
		config.Archive.Keyspace = ss.Spec.ArchiveConfig["keyspace"]
		return archivecassandra.NewArchive(config)
	default:
		return archivemock.NewArchive(), nil
	}
}

// SetupWithManager sets up the controller with the Manager
func (r *SealStoreReconciler) SetupWithManager(mgr ctrl.Manager) error {
	r.vaults = make(map[string]*vault.SealedVault)
	return ctrl.NewControllerManagedBy(mgr).
		For(&v1.SealStore{}).
		Complete(r)
}
