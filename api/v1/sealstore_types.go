package v1

import (
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"sigs.k8s.io/controller-runtime/pkg/scheme"
)

// SealStoreGroupVersion is the group version used to register these objects
var SealStoreGroupVersion = schema.GroupVersion{
	Group:   "vault.veilbase.io",
	Version: "v1",
}

// SchemeBuilder is used to add go types to the GroupVersionKind scheme
var SchemeBuilder = &scheme.Builder{GroupVersion: SealStoreGroupVersion}

// AddToScheme adds the types in this group-version to the given scheme
var AddToScheme = SchemeBuilder.AddToScheme

// SealStoreSpec defines the desired state of SealStore
type SealStoreSpec struct {
	// OracleAddress identifies the randomness oracle the vault consumes
	OracleAddress string `json:"oracleAddress"`
	// OracleFee is the fee the oracle charges per randomness request
	OracleFee uint64 `json:"oracleFee,omitempty"`
	// ArchiveBackend selects the published-value archive (e.g., "redis", "cassandra", "mock")
	ArchiveBackend string `json:"archiveBackend,omitempty"`
	// ArchiveConfig provides connection details for the archive
	ArchiveConfig map[string]string `json:"archiveConfig,omitempty"`
	// MaxBatchSize caps batch publications; zero means unlimited
	MaxBatchSize int `json:"maxBatchSize,omitempty"`
}

// SealStoreStatus defines the observed state of SealStore
type SealStoreStatus struct {
	// Ready indicates if the vault is operational
	Ready bool `json:"ready"`
	// TotalValues is the count of initialized keys
	TotalValues uint64 `json:"totalValues,omitempty"`
	// LastReconciledTime tracks the last reconciliation
	LastReconciledTime *metav1.Time `json:"lastReconciledTime,omitempty"`
}

// +kubebuilder:object:root=true
// +kubebuilder:subresource:status

// SealStore is the Schema for the sealstores API
type SealStore struct {
	metav1.TypeMeta   `json:",inline"`
	metav1.ObjectMeta `json:"metadata,omitempty"`

	Spec   SealStoreSpec   `json:"spec,omitempty"`
	Status SealStoreStatus `json:"status,omitempty"`
}

// DeepCopyObject implements runtime.Object
func (in *SealStore) DeepCopyObject() runtime.Object {
	out := new(SealStore)
	*out = *in
	out.TypeMeta = in.TypeMeta
	in.ObjectMeta.DeepCopyInto(&out.ObjectMeta)
	if in.Spec.ArchiveConfig != nil {
		out.Spec.ArchiveConfig = make(map[string]string, len(in.Spec.ArchiveConfig))
		for k, v := range in.Spec.ArchiveConfig {
			out.Spec.ArchiveConfig[k] = v
		}
	}
	if in.Status.LastReconciledTime != nil {
		out.Status.LastReconciledTime = in.Status.LastReconciledTime.DeepCopy()
	}
	return out
}

// +kubebuilder:object:root=true

// SealStoreList contains a list of SealStore
type SealStoreList struct {
	metav1.TypeMeta `json:",inline"`
	metav1.ListMeta `json:"metadata,omitempty"`
	Items           []SealStore `json:"items"`
}

// DeepCopyObject implements runtime.Object
func (in *SealStoreList) DeepCopyObject() runtime.Object {
	out := new(SealStoreList)
	out.TypeMeta = in.TypeMeta
	in.ListMeta.DeepCopyInto(&out.ListMeta)
	if in.Items != nil {
		out.Items = make([]SealStore, len(in.Items))
		for i := range in.Items {
			out.Items[i] = *in.Items[i].DeepCopyObject().(*SealStore)
		}
	}
	return out
}

func init() {
	SchemeBuilder.Register(&SealStore{}, &SealStoreList{})
}
