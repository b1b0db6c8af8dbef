package kb

import (
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/anchorsec/posture/internal/errors"
	"github.com/anchorsec/posture/internal/logging"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Load reads and parses a knowledge-base file from disk.
func Load(path string) (*KnowledgeBase, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.ErrKBFileMissing(path, err)
	}

	base, err := Parse(data)
	if err != nil {
		if kbErr, ok := err.(*errors.KnowledgeBaseError); ok {
			return nil, kbErr.WithPath(path)
		}
		return nil, err
	}

	logging.Default().InfoKB("Knowledge base loaded",
		"path", path,
		"software_entries", base.SoftwareCount(),
		"os_entries", base.OSCount())

	return base, nil
}

// Parse decodes knowledge-base YAML and validates the result.
func Parse(data []byte) (*KnowledgeBase, error) {
	var base KnowledgeBase
	if err := yaml.Unmarshal(data, &base); err != nil {
		return nil, errors.WrapKnowledgeBaseError(errors.CodeKBMalformed, "Knowledge base content is malformed", err)
	}
	if err := base.Validate(); err != nil {
		return nil, err
	}
	return &base, nil
}

// Validate checks every software and OS entry against the declared schema
// constraints. Structural validation happens once at load time so lookups
// can stay defensive but cheap.
func (k *KnowledgeBase) Validate() error {
	for softwareType, byName := range k.Software {
		for name, entry := range byName {
			if entry == nil {
				continue
			}
			if err := validate.Struct(entry); err != nil {
				kbErr := errors.WrapKnowledgeBaseError(errors.CodeKBEntry, "Invalid software entry", err)
				kbErr.Software = softwareType + "/" + name
				return kbErr
			}
		}
	}
	for distribution, byVersion := range k.OperatingSystems {
		for version, entry := range byVersion {
			if entry == nil {
				continue
			}
			if err := validate.Struct(entry); err != nil {
				kbErr := errors.WrapKnowledgeBaseError(errors.CodeKBEntry, "Invalid operating system entry", err)
				kbErr.Software = distribution + "/" + version
				return kbErr
			}
		}
	}
	return nil
}
