package kueue

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kubeadapt/kueue-observer/internal/observability"
	"github.com/kubeadapt/kueue-observer/internal/transport"
	"github.com/kubeadapt/kueue-observer/pkg/model"
)

// fakeAPIServer serves canned JSON bodies by exact request path.
func fakeAPIServer(t *testing.T, bodies map[string]string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := bodies[r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"kind":"Status","code":404,"message":"not found"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(url string) *Client {
	tc := transport.NewClient(nil, transport.Options{BaseURL: url, RequestTimeout: 2 * time.Second}, observability.NewMetrics())
	return NewClient(tc, Paths{
		QueueGroupVersion:      DefaultQueueGroupVersion,
		VisibilityGroupVersion: DefaultVisibilityGroupVersion,
	})
}

func TestClient_ListLocalQueues(t *testing.T) {
	srv := fakeAPIServer(t, map[string]string{
		"/apis/kueue.x-k8s.io/v1beta1/localqueues": `{"items":[
			{"metadata":{"name":"lq1","namespace":"team-a"},"spec":{"clusterQueue":"cq-shared"}},
			{"metadata":{"name":"lq2","namespace":"team-a"},"spec":{"clusterQueue":"cq-shared"}},
			{"metadata":{"name":"lq3","namespace":"team-b"},"spec":{"clusterQueue":"cq-gpu"}}
		]}`,
	})

	got, err := newTestClient(srv.URL).ListLocalQueues(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []model.LocalQueueInfo{
		{Name: "lq1", Namespace: "team-a", ClusterQueue: "cq-shared"},
		{Name: "lq2", Namespace: "team-a", ClusterQueue: "cq-shared"},
		{Name: "lq3", Namespace: "team-b", ClusterQueue: "cq-gpu"},
	}, got)
}

func TestClient_PendingWorkloads(t *testing.T) {
	srv := fakeAPIServer(t, map[string]string{
		"/apis/visibility.kueue.x-k8s.io/v1beta1/clusterqueues/cq-shared/pendingworkloads": `{"items":[
			{"metadata":{"name":"w1","namespace":"team-a","creationTimestamp":"2026-03-01T12:00:00Z",
			  "ownerReferences":[{"apiVersion":"batch/v1","kind":"Job","name":"train","uid":"o1"}]},
			 "priority":10,"localQueueName":"lq1","positionInClusterQueue":0,"positionInLocalQueue":1},
			{"metadata":{"name":"w2","namespace":"team-a","creationTimestamp":"2026-03-01T12:01:00Z"},
			 "priority":5,"localQueueName":"lq1","positionInClusterQueue":1,"positionInLocalQueue":0}
		]}`,
	})

	got, err := newTestClient(srv.URL).PendingWorkloads(context.Background(), "cq-shared")
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "w1", got[0].Name)
	assert.Equal(t, int32(10), got[0].Priority)
	assert.Equal(t, int32(1), got[0].PositionInLocalQueue)
	assert.Equal(t, time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC).UnixMilli(), got[0].CreationTimestamp)
	require.NotNil(t, got[0].Owner)
	assert.Equal(t, "Job", got[0].Owner.Kind)
	assert.Nil(t, got[1].Owner)
}

func TestClient_GetWorkload(t *testing.T) {
	srv := fakeAPIServer(t, map[string]string{
		"/apis/kueue.x-k8s.io/v1beta1/namespaces/team-a/workloads/w1": `{
			"metadata":{"name":"w1","namespace":"team-a"},
			"spec":{"podSets":[{"name":"main","count":1,"template":{"spec":{"containers":[
				{"name":"c","resources":{"limits":{"cpu":"2","memory":"4Gi"}}}
			]}}}]}}`,
	})

	got, err := newTestClient(srv.URL).GetWorkload(context.Background(), "team-a", "w1")
	require.NoError(t, err)

	require.Len(t, got.PodSets, 1)
	require.Len(t, got.PodSets[0].Containers, 1)
	assert.Equal(t, "2", got.PodSets[0].Containers[0].Limits["cpu"])
	assert.Equal(t, "4Gi", got.PodSets[0].Containers[0].Limits["memory"])
}

func TestClient_GetOwner(t *testing.T) {
	srv := fakeAPIServer(t, map[string]string{
		"/apis/batch/v1/namespaces/team-a/jobs/train": `{
			"apiVersion":"batch/v1","kind":"Job",
			"metadata":{"name":"train","namespace":"team-a","labels":{"x-jobby.io/submitter":"alice"}},
			"spec":{"parallelism":1}}`,
	})

	ref := model.OwnerReference{APIVersion: "batch/v1", Kind: "Job", Name: "train"}
	got, err := newTestClient(srv.URL).GetOwner(context.Background(), "team-a", ref)
	require.NoError(t, err)

	assert.Equal(t, "alice", got.Labels["x-jobby.io/submitter"])
	assert.Equal(t, "Job", got.Kind)
}

func TestClient_GetOwner_NotFound(t *testing.T) {
	srv := fakeAPIServer(t, nil)

	ref := model.OwnerReference{APIVersion: "batch/v1", Kind: "Job", Name: "gone"}
	_, err := newTestClient(srv.URL).GetOwner(context.Background(), "team-a", ref)

	var se *transport.StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusNotFound, se.StatusCode)
}
