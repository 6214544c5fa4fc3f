package resources

import (
	"errors"
	"fmt"
	"strings"

	"github.com/alexisbeaulieu97/ccreconcile/internal/domain/reconcile"
	"github.com/alexisbeaulieu97/ccreconcile/internal/ports"
	"github.com/alexisbeaulieu97/ccreconcile/internal/schema"
)

const (
	SiteArea     = "area"
	SiteBuilding = "building"
	SiteFloor    = "floor"
)

// SiteSpec declares the site hierarchy kind. Names are full hierarchy paths
// such as Global/USA/SJC-23.
func SiteSpec() schema.Spec {
	return schema.Spec{
		Kind:       "site",
		NaturalKey: "name",
		Fields: []schema.Field{
			{Name: "name", Type: schema.TypeString, Required: true, Validate: "site_path", CaseInsensitive: true, MustEcho: true},
			{
				Name: "type", Type: schema.TypeString, Choices: []string{SiteArea, SiteBuilding, SiteFloor},
				Immutable: true, MustEcho: true,
			},
			{Name: "address", Type: schema.TypeString, MaxLength: 255},
			{Name: "latitude", Type: schema.TypeFloat, Range: &schema.Range{Min: -90, Max: 90}},
			{Name: "longitude", Type: schema.TypeFloat, Range: &schema.Range{Min: -180, Max: 180}},
			{Name: "rf_model", Type: schema.TypeString, Choices: rfModels},
			{Name: "width", Type: schema.TypeFloat, Range: &schema.Range{Min: 0, Max: 10000}},
			{Name: "length", Type: schema.TypeFloat, Range: &schema.Range{Min: 0, Max: 10000}},
			{Name: "height", Type: schema.TypeFloat, Range: &schema.Range{Min: 0, Max: 10000}},
		},
	}
}

var rfModels = []string{
	"Cubes And Walled Offices",
	"Drywall Office Only",
	"Indoor High Ceiling",
	"Outdoor Open Space",
}

// NewSite builds the site resource.
func NewSite() (ports.Resource, error) {
	return New(Config{
		Spec: SiteSpec(),
		Collection: reconcile.Collection{
			Name:       "site",
			Path:       "/dna/intent/api/v1/site",
			ItemPath:   "/dna/intent/api/v1/site/{id}",
			IDField:    "id",
			IDParam:    "siteId",
			OffsetBase: 1,
			GetByQuery: true,
		},
		MinVersion: "2.3.5",
		FilterKey:  "name",
		Checks:     []CrossCheck{siteTypeCheck},
		Decoder:    decodeSite,
		Encoder:    encodeSite,
		References: siteParent,
		Sentinels: map[reconcile.Operation]reconcile.Sentinels{
			reconcile.OpCreate: {Success: []string{"site added", "created"}, Failure: []string{"already exists"}},
			reconcile.OpUpdate: {Success: []string{"site updated", "updated"}},
			reconcile.OpDelete: {Success: []string{"site deleted", "deleted"}, Failure: []string{"has children"}},
		},
	})
}

// siteTypeCheck restricts attributes to the site types that carry them.
func siteTypeCheck(values schema.Record) error {
	typ, _ := values["type"].(string)
	if typ == "" {
		return nil
	}

	var errs []error
	if name, _ := values["name"].(string); !strings.Contains(name, "/") {
		errs = append(errs, errors.New("the Global root cannot be managed"))
	}
	if typ != SiteBuilding {
		for _, key := range []string{"address", "latitude", "longitude"} {
			if _, ok := values[key]; ok {
				errs = append(errs, fmt.Errorf("%s applies only when type is building", key))
			}
		}
	} else {
		_, hasLat := values["latitude"]
		_, hasLon := values["longitude"]
		if hasLat != hasLon {
			errs = append(errs, errors.New("latitude and longitude must be set together"))
		}
	}
	if typ != SiteFloor {
		for _, key := range []string{"rf_model", "width", "length", "height"} {
			if _, ok := values[key]; ok {
				errs = append(errs, fmt.Errorf("%s applies only when type is floor", key))
			}
		}
	}
	return errors.Join(errs...)
}

// siteParent makes a site depend on its parent area or building.
func siteParent(values schema.Record) []string {
	name, _ := values["name"].(string)
	parent, _ := SplitSitePath(name)
	if parent == "" || !strings.Contains(parent, "/") {
		return nil
	}
	return []string{parent}
}

// SplitSitePath returns the parent hierarchy and the leaf name.
func SplitSitePath(path string) (parent, leaf string) {
	i := strings.LastIndex(path, "/")
	if i < 0 {
		return "", path
	}
	return path[:i], path[i+1:]
}

func decodeSite(raw map[string]any) schema.Record {
	out := schema.Record{}
	if name, ok := raw["siteNameHierarchy"].(string); ok && name != "" {
		out["name"] = name
	}

	infos, _ := raw["additionalInfo"].([]any)
	for _, info := range infos {
		entry, ok := info.(map[string]any)
		if !ok {
			continue
		}
		attrs, _ := entry["attributes"].(map[string]any)
		switch entry["nameSpace"] {
		case "Location":
			copyAttr(out, "type", attrs, "type")
			copyAttr(out, "address", attrs, "address")
			copyAttr(out, "latitude", attrs, "latitude")
			copyAttr(out, "longitude", attrs, "longitude")
		case "mapsSummary":
			copyAttr(out, "rf_model", attrs, "rfModel")
		case "mapGeometry":
			copyAttr(out, "width", attrs, "width")
			copyAttr(out, "length", attrs, "length")
			copyAttr(out, "height", attrs, "height")
		}
	}
	if _, ok := out["type"]; !ok && raw["parentId"] == nil {
		out["type"] = SiteArea
	}
	return out
}

func copyAttr(out schema.Record, key string, attrs map[string]any, attr string) {
	if v, ok := attrs[attr]; ok && v != nil && v != "" {
		out[key] = v
	}
}

func encodeSite(values schema.Record) map[string]any {
	typ, _ := values["type"].(string)
	name, _ := values["name"].(string)
	parent, leaf := SplitSitePath(name)

	body := map[string]any{}
	if leaf != "" {
		body["name"] = leaf
	}
	if parent != "" {
		body["parentName"] = parent
	}
	for _, pair := range [][2]string{
		{"address", "address"},
		{"latitude", "latitude"},
		{"longitude", "longitude"},
		{"rf_model", "rfModel"},
		{"width", "width"},
		{"length", "length"},
		{"height", "height"},
	} {
		if v, ok := values[pair[0]]; ok && v != nil {
			body[pair[1]] = v
		}
	}

	return map[string]any{
		"type": typ,
		"site": map[string]any{typ: body},
	}
}
