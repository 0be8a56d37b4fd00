package spatialanalyst

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"multiverse-spatial/internal/config"
	"multiverse-spatial/internal/minio"
	"multiverse-spatial/internal/reasoning"
	"multiverse-spatial/internal/scenegraph"
	"multiverse-spatial/internal/schema"
)

const maxBodyBytes = 10 << 20

var (
	errArchiveDisabled = errors.New("object storage not configured")
	errBadRequest      = errors.New("bad request")
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor сопоставляет ошибки домена с HTTP-статусами.
func statusFor(err error) int {
	switch {
	case errors.Is(err, scenegraph.ErrNodeNotFound), errors.Is(err, minio.ErrObjectNotFound):
		return http.StatusNotFound
	case errors.Is(err, scenegraph.ErrInvalidNode),
		errors.Is(err, reasoning.ErrInvalidTier),
		errors.Is(err, schema.ErrInvalidDocument),
		errors.Is(err, config.ErrInvalidProfiles),
		errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, reasoning.ErrResourceExhausted):
		return http.StatusConflict
	case errors.Is(err, errArchiveDisabled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Service) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}

func (s *Service) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"world_id": s.cfg.WorldID,
		"nodes":    s.graph.Len(),
		"tier":     s.engine.Tier(),
	})
}

func (s *Service) ListNodesHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, nonNil(s.graph.Nodes()))
}

func (s *Service) GetNodeHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	n, ok := s.graph.Node(id)
	if !ok {
		s.writeError(w, r, fmt.Errorf("%w: %s", scenegraph.ErrNodeNotFound, id))
		return
	}
	writeJSON(w, http.StatusOK, n)
}

// PutNodeHandler принимает узел в формате документа сцены.
func (s *Service) PutNodeHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var raw map[string]any
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		s.writeError(w, r, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	if bodyID, ok := raw["id"]; ok && bodyID != id {
		s.writeError(w, r, fmt.Errorf("%w: body id %v does not match path id %s", errBadRequest, bodyID, id))
		return
	}
	raw["id"] = id
	if err := s.validator.Validate(map[string]any{"nodes": []any{raw}}); err != nil {
		s.writeError(w, r, err)
		return
	}

	data, err := json.Marshal(raw)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var spec scenegraph.NodeSpec
	if err := json.Unmarshal(data, &spec); err != nil {
		s.writeError(w, r, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	n := spec.ToNode()
	if err := s.upsertNode(r.Context(), n); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

func (s *Service) DeleteNodeHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.removeNode(r.Context(), mux.Vars(r)["id"]); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetSceneHandler отдаёт граф как документ сцены (?format=yaml для YAML).
func (s *Service) GetSceneHandler(w http.ResponseWriter, r *http.Request) {
	format := scenegraph.DetectFormat(r.URL.Query().Get("format"))
	data, err := scenegraph.EncodeDocument(s.cfg.WorldID, s.graph.Nodes(), format)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if format == scenegraph.FormatYAML {
		w.Header().Set("Content-Type", "application/x-yaml")
	} else {
		w.Header().Set("Content-Type", "application/json")
	}
	_, _ = w.Write(data)
}

// PostSceneHandler заменяет граф документом сцены (JSON или YAML по Content-Type).
func (s *Service) PostSceneHandler(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(io.LimitReader(r.Body, maxBodyBytes)); err != nil {
		s.writeError(w, r, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	doc, nodes, err := scenegraph.DecodeDocument(buf.Bytes(), scenegraph.DetectFormat(r.Header.Get("Content-Type")), s.validator)
	if err != nil {
		if !errors.Is(err, schema.ErrInvalidDocument) && !errors.Is(err, scenegraph.ErrInvalidNode) {
			err = fmt.Errorf("%w: %v", errBadRequest, err)
		}
		s.writeError(w, r, err)
		return
	}
	if err := s.replaceScene(r.Context(), nodes); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.logger.Info("scene replaced", zap.String("scene_id", doc.SceneID), zap.Int("nodes", len(nodes)))
	writeJSON(w, http.StatusOK, map[string]any{"scene_id": doc.SceneID, "nodes": len(nodes)})
}

func (s *Service) SnapshotHandler(w http.ResponseWriter, r *http.Request) {
	if s.archive == nil {
		s.writeError(w, r, errArchiveDisabled)
		return
	}
	key, err := s.archive.SaveSnapshot(r.Context(), s.cfg.WorldID, s.graph.Nodes())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"object": key})
}

func (s *Service) RelationshipsHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	rels, err := s.engine.RelationshipsBetween(vars["a"], vars["b"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.exportRelationships(r.Context(), rels)
	writeJSON(w, http.StatusOK, nonNil(rels))
}

func (s *Service) BetweenHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	nodes, err := s.engine.NodesBetween(vars["a"], vars["b"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(nodes))
}

func (s *Service) OcclusionHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	rels, err := s.engine.OcclusionOf(vars["viewpoint"], vars["target"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.exportRelationships(r.Context(), rels)
	writeJSON(w, http.StatusOK, nonNil(rels))
}

func (s *Service) ObstaclesHandler(w http.ResponseWriter, r *http.Request) {
	obstacles, err := s.engine.ObstaclesFrom(mux.Vars(r)["viewpoint"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(obstacles))
}

func (s *Service) ContextsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, nonNil(s.engine.IdentifySpatialContexts()))
}

func (s *Service) LineOfSightHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, nonNil(s.engine.LineOfSight()))
}

func (s *Service) FactsHandler(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["type"]
	typ, ok := reasoning.ParseRelationType(name)
	if !ok {
		s.writeError(w, r, fmt.Errorf("%w: unknown relation type %q", errBadRequest, name))
		return
	}
	writeJSON(w, http.StatusOK, nonNil(s.engine.Facts(typ)))
}

func (s *Service) ThreatHandler(w http.ResponseWriter, r *http.Request) {
	report, err := s.assessThreat(r.Context(), mux.Vars(r)["viewpoint"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Service) ReportsHandler(w http.ResponseWriter, r *http.Request) {
	if s.archive == nil {
		s.writeError(w, r, errArchiveDisabled)
		return
	}
	objects, err := s.archive.Reports(r.Context(), mux.Vars(r)["viewpoint"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(objects))
}

func (s *Service) ReportHandler(w http.ResponseWriter, r *http.Request) {
	if s.archive == nil {
		s.writeError(w, r, errArchiveDisabled)
		return
	}
	vars := mux.Vars(r)
	data, err := s.archive.Report(r.Context(), vars["viewpoint"], vars["report"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(data)
}

type tierRequest struct {
	Tier *int `json:"tier" validate:"required,min=0,max=5"`
}

type tierResponse struct {
	Tier    int                `json:"tier"`
	Profile config.TierProfile `json:"profile"`
}

func (s *Service) tierState() tierResponse {
	return tierResponse{Tier: s.engine.Tier(), Profile: s.engine.Profile()}
}

func (s *Service) GetTierHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.tierState())
}

func (s *Service) SetTierHandler(w http.ResponseWriter, r *http.Request) {
	var req tierRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
		s.writeError(w, r, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	if err := validate.Struct(req); err != nil {
		s.writeError(w, r, fmt.Errorf("%w: %v", reasoning.ErrInvalidTier, err))
		return
	}
	if err := s.engine.SetResourceTier(*req.Tier); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.metrics.Tier.Set(float64(s.engine.Tier()))
	writeJSON(w, http.StatusOK, s.tierState())
}

func (s *Service) ProfilesHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Profiles())
}

func (s *Service) ResourcesHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"memory": s.engine.Resources().Snapshot(),
		"caches": s.engine.CacheStats(),
	})
}

func (s *Service) HistoryHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, nonNil(s.engine.History()))
}

func (s *Service) ResetHandler(w http.ResponseWriter, r *http.Request) {
	s.engine.Reset()
	w.WriteHeader(http.StatusNoContent)
}
