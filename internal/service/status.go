package service

import (
	"time"

	"kairos/internal/catalog"
	"kairos/internal/chat"
	"kairos/internal/hardware"
	"kairos/pkg/types"
)

// Status builds the response for /status.
func (s *Service) Status() types.StatusResponse {
	snap := s.manager.Snapshot()
	resp := types.StatusResponse{
		State:         string(snap.State),
		ActiveModel:   snap.Model,
		GPULayers:     snap.GPULayers,
		Backend:       string(snap.Backend),
		LastError:     snap.LastError,
		Hardware:      HardwareView(s.hw.Detect()),
		UptimeSeconds: int64(time.Since(s.started).Seconds()),
		QueueLen:      s.gate.waiting(),
		Inflight:      s.gate.inflight(),
	}
	resp.Models = s.Models()
	if st := s.gen.LastStats(); st.TotalTokens > 0 {
		v := StatsView(st)
		resp.LastStats = &v
	}
	return resp
}

// ModelView converts a descriptor to its wire form.
func ModelView(d catalog.Descriptor) types.Model {
	return types.Model{
		Name:          d.Name,
		DisplayName:   d.DisplayName,
		SizeBytes:     d.SizeBytes,
		DownloadState: string(d.State),
		Progress:      d.Progress,
		Downloaded:    d.Downloaded,
		Active:        d.Active,
		Custom:        d.Custom,
		LoadError:     d.LoadError,
		DownloadError: d.DownloadError,
		Local:         d.IsLocal,
	}
}

// HardwareView converts a profile to its wire form.
func HardwareView(p hardware.Profile) types.HardwareStatus {
	return types.HardwareStatus{
		GPUName:            p.GPUName,
		GPUMemoryBytes:     p.GPUMemoryBytes,
		TotalRAMBytes:      p.TotalRAMBytes,
		RecommendedBackend: string(p.Recommended),
		SelectedBackend:    string(p.Selected),
		AvailableBackends:  p.BackendNames(),
		Message:            p.StatusMessage(),
	}
}

// StatsView converts generation statistics to their wire form.
func StatsView(st chat.Stats) types.StatsResponse {
	return types.StatsResponse{
		TokensPerSecond: st.TokensPerSecond,
		TotalTokens:     st.TotalTokens,
		PromptTokens:    st.PromptTokens,
		GeneratedTokens: st.GeneratedTokens,
		ElapsedMillis:   st.Elapsed.Milliseconds(),
		MemoryDelta:     st.MemoryDelta,
		Backend:         st.Backend,
	}
}
