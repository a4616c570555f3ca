package utils

import (
	"encoding/json"
	"fmt"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/joseph-ayodele/directory-submitter/internal/entity"
)

// ToStruct converts any JSON-tagged value into a protobuf Struct.
func ToStruct(v any) (*structpb.Struct, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal %T: %w", v, err)
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(b, out); err != nil {
		return nil, fmt.Errorf("struct from %T: %w", v, err)
	}
	return out, nil
}

// FromStruct decodes a protobuf Struct into dst using dst's JSON tags.
func FromStruct(s *structpb.Struct, dst any) error {
	if s == nil {
		s = &structpb.Struct{}
	}
	b, err := protojson.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal struct: %w", err)
	}
	if err := json.Unmarshal(b, dst); err != nil {
		return fmt.Errorf("decode into %T: %w", dst, err)
	}
	return nil
}

func ToPBProfile(p *entity.BusinessProfile) (*structpb.Struct, error) {
	return ToStruct(p)
}

func ToPBJob(j *entity.Job) (*structpb.Struct, error) {
	return ToStruct(j)
}

func ToPBJobList(jobs []*entity.Job) (*structpb.Struct, error) {
	if jobs == nil {
		jobs = []*entity.Job{}
	}
	return ToStruct(map[string]any{"jobs": jobs})
}

func ToPBResultList(results []*entity.SubmissionResult) (*structpb.Struct, error) {
	if results == nil {
		results = []*entity.SubmissionResult{}
	}
	return ToStruct(map[string]any{"results": results})
}
