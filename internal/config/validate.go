package config

import (
	"fmt"
	"strconv"
	"strings"
)

const fsrsWeightCount = 17

// Validate performs business-rule validation on the loaded configuration.
// It must be called after loading; Load calls it automatically.
func (c *Config) Validate() error {
	if len(c.Auth.JWTSecret) < 32 {
		return fmt.Errorf("auth.jwt_secret must be at least 32 characters (got %d)", len(c.Auth.JWTSecret))
	}

	if err := c.FSRS.validate(); err != nil {
		return fmt.Errorf("fsrs: %w", err)
	}
	if err := c.LLM.validate(); err != nil {
		return fmt.Errorf("llm: %w", err)
	}
	if err := c.Similarity.validate(); err != nil {
		return fmt.Errorf("similarity: %w", err)
	}
	if err := c.UserProfiling.validate(); err != nil {
		return fmt.Errorf("user_profiling: %w", err)
	}

	if c.Recommendation.CacheTTLSeconds <= 0 {
		return fmt.Errorf("recommendation.cache_ttl_seconds must be > 0 (got %d)", c.Recommendation.CacheTTLSeconds)
	}

	return nil
}

func (f *FSRSConfig) validate() error {
	if f.DefaultRequestRetention <= 0.7 || f.DefaultRequestRetention >= 0.99 {
		return fmt.Errorf("default_request_retention must be in (0.70, 0.99) (got %v)", f.DefaultRequestRetention)
	}

	weights, set, err := ParseWeights(f.DefaultParametersRaw)
	if err != nil {
		return fmt.Errorf("default_parameters: %w", err)
	}
	f.Weights = weights
	f.HasCustomWeights = set

	return nil
}

func (l *LLMConfig) validate() error {
	if !l.Enabled {
		return nil
	}
	if len(l.Nodes) == 0 {
		return fmt.Errorf("enabled but no nodes configured")
	}
	seen := make(map[string]bool, len(l.Nodes))
	for i, n := range l.Nodes {
		if n.Name == "" {
			return fmt.Errorf("nodes[%d]: name must not be empty", i)
		}
		if seen[n.Name] {
			return fmt.Errorf("nodes[%d]: duplicate name %q", i, n.Name)
		}
		seen[n.Name] = true
		if n.TimeoutMs <= 0 {
			return fmt.Errorf("nodes[%d] (%s): timeout_ms must be > 0 (got %d)", i, n.Name, n.TimeoutMs)
		}
		if n.RetryAttempts < 0 {
			return fmt.Errorf("nodes[%d] (%s): retry_attempts must be >= 0 (got %d)", i, n.Name, n.RetryAttempts)
		}
	}
	return nil
}

func (s *SimilarityConfig) validate() error {
	w := s.Weights
	if w.Tags < 0 || w.Categories < 0 || w.Difficulty < 0 {
		return fmt.Errorf("weights must be >= 0")
	}
	if w.Tags+w.Categories+w.Difficulty <= 0 {
		return fmt.Errorf("weights must not all be zero")
	}
	if t := s.Thresholds.EmptyFeatureSimilarity; t < 0 || t > 1 {
		return fmt.Errorf("thresholds.empty_feature_similarity must be in [0, 1] (got %v)", t)
	}
	return nil
}

func (c *UserProfilingConfig) validate() error {
	mapping, err := ParseTagDomainMapping(c.TagDomainMappingRaw)
	if err != nil {
		return fmt.Errorf("tag_domain_mapping: %w", err)
	}
	c.TagDomainMapping = mapping
	return nil
}

// ParseWeights parses a comma-separated string of exactly 17 floats. An empty
// string reports set=false, meaning built-in defaults apply.
func ParseWeights(raw string) (weights [17]float64, set bool, err error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return weights, false, nil
	}

	parts := strings.Split(raw, ",")
	if len(parts) != fsrsWeightCount {
		return weights, false, fmt.Errorf("expected %d weights, got %d", fsrsWeightCount, len(parts))
	}
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return weights, false, fmt.Errorf("weight %d: invalid float %q: %w", i, p, err)
		}
		weights[i] = v
	}
	return weights, true, nil
}

// ParseTagDomainMapping parses comma-separated "tag:domain" pairs.
// An empty string returns an empty map.
func ParseTagDomainMapping(raw string) (map[string]string, error) {
	out := make(map[string]string)
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return out, nil
	}

	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		tag, dom, ok := strings.Cut(pair, ":")
		tag, dom = strings.TrimSpace(tag), strings.TrimSpace(dom)
		if !ok || tag == "" || dom == "" {
			return nil, fmt.Errorf("invalid pair %q, want tag:domain", pair)
		}
		out[tag] = dom
	}
	return out, nil
}
