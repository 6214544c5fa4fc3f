package resources

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/alexisbeaulieu97/ccreconcile/internal/domain/reconcile"
	"github.com/alexisbeaulieu97/ccreconcile/internal/schema"
)

func TestDefaultRegistryServesBuiltInKinds(t *testing.T) {
	reg := Default()
	require.Equal(t, []string{"site", "transit"}, reg.Kinds())

	transit, err := reg.Get("transit")
	require.NoError(t, err)
	require.Equal(t, "/dna/intent/api/v1/sda/transitNetworks", transit.Collection().Path)

	spec, ok := reg.Spec("site")
	require.True(t, ok)
	require.Equal(t, "name", spec.NaturalKey)

	_, err = reg.Get("fabric")
	require.Equal(t, reconcile.ErrCodeNotFound, reconcile.CodeOf(err))

	require.Error(t, reg.Register(transit), "duplicate kinds are rejected")
	require.Len(t, reg.List(), 2)
}

func TestNewRejectsInconsistentConfig(t *testing.T) {
	spec := TransitSpec()

	_, err := New(Config{Spec: spec})
	require.ErrorContains(t, err, "collection path is required")

	_, err = New(Config{Spec: spec, Collection: reconcile.Collection{Path: "/x"}})
	require.ErrorContains(t, err, "unknown collection")

	_, err = New(Config{
		Spec:       schema.Spec{Kind: "k", NaturalKey: "name", Fields: []schema.Field{{Name: "name", Type: schema.TypeString, Required: true}}},
		Collection: reconcile.Collection{Path: "/x"},
		Codecs:     map[string]Codec{"ghost": StringNumberCodec},
	})
	require.ErrorContains(t, err, "undeclared field")
}

func TestTransitWireMapping(t *testing.T) {
	res, err := NewTransit()
	require.NoError(t, err)

	ip := res.Encode(schema.Record{"name": "T1", "type": "ip", "asn": 65001, "multicast": false})
	require.Equal(t, map[string]any{
		"name": "T1",
		"type": "IP_BASED_TRANSIT",
		"ipTransitSettings": map[string]any{
			"autonomousSystemNumber": "65001",
			"routingProtocolName":    "BGP",
		},
	}, ip)

	sda := res.Encode(schema.Record{"name": "T2", "type": "sda", "control_plane_devices": []any{"dev-1"}, "multicast": true})
	require.Equal(t, map[string]any{
		"name": "T2",
		"type": "SDA_LISP_PUB_SUB_TRANSIT",
		"sdaTransitSettings": map[string]any{
			"controlPlaneNetworkDeviceIds":  []any{"dev-1"},
			"isMulticastOverTransitEnabled": true,
		},
	}, sda)

	id, values := res.Decode(map[string]any{
		"id":   "t-1",
		"name": "T1",
		"type": "IP_BASED_TRANSIT",
		"ipTransitSettings": map[string]any{
			"routingProtocolName":    "BGP",
			"autonomousSystemNumber": "65001",
		},
	})
	require.Equal(t, "t-1", id)
	require.Equal(t, schema.Record{"name": "T1", "type": "ip", "asn": 65001}, values)

	_, values = res.Decode(map[string]any{
		"id":   "t-2",
		"name": "T2",
		"type": "SDA_LISP_PUB_SUB_TRANSIT",
		"sdaTransitSettings": map[string]any{
			"controlPlaneNetworkDeviceIds":  []any{"dev-1"},
			"isMulticastOverTransitEnabled": false,
		},
	})
	require.Equal(t, schema.Record{"name": "T2", "type": "sda", "control_plane_devices": []any{"dev-1"}, "multicast": false}, values)

	require.Equal(t, reconcile.Filter{"name": "T1"}, res.ObserveFilter("T1"))
	require.Equal(t, []string{"already exists"}, res.Sentinels(reconcile.OpCreate).Failure)

	devices, ok := res.LookupCollection("network-device")
	require.True(t, ok)
	require.Equal(t, "/dna/intent/api/v1/network-device", devices.Path)
}

func TestTransitCrossValidation(t *testing.T) {
	res, err := NewTransit()
	require.NoError(t, err)

	cases := []struct {
		name   string
		values schema.Record
		want   string
	}{
		{"ip without asn", schema.Record{"type": "ip"}, "asn is required when type is ip"},
		{"ip with devices", schema.Record{"type": "ip", "asn": 1, "control_plane_devices": []any{"10.0.0.1"}}, "applies only when type is sda"},
		{"sda without devices", schema.Record{"type": "sda"}, "control_plane_devices is required"},
		{"sda with asn", schema.Record{"type": "sda", "asn": 1, "control_plane_devices": []any{"10.0.0.1"}}, "asn applies only"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.ErrorContains(t, res.CrossValidate(tc.values), tc.want)
		})
	}

	require.NoError(t, res.CrossValidate(schema.Record{"type": "ip", "asn": 65001}))
	require.NoError(t, res.CrossValidate(schema.Record{"asn": 65001}), "type inherited from the controller")
}

func TestSiteWireMapping(t *testing.T) {
	res, err := NewSite()
	require.NoError(t, err)

	id, values := res.Decode(map[string]any{
		"id":                "s-1",
		"parentId":          "p-1",
		"siteNameHierarchy": "Global/USA/SJC",
		"additionalInfo": []any{
			map[string]any{"nameSpace": "Location", "attributes": map[string]any{
				"type": "building", "address": "1 Main St", "latitude": "37.4", "longitude": "-121.9",
			}},
			map[string]any{"nameSpace": "ETA", "attributes": map[string]any{"member.etaCapable.direct": "true"}},
		},
	})
	require.Equal(t, "s-1", id)
	require.Equal(t, schema.Record{
		"name":      "Global/USA/SJC",
		"type":      "building",
		"address":   "1 Main St",
		"latitude":  37.4,
		"longitude": -121.9,
	}, values)

	payload := res.Encode(schema.Record{"name": "Global/USA/SJC", "type": "building", "latitude": 37.4, "longitude": -121.9})
	require.Equal(t, map[string]any{
		"type": "building",
		"site": map[string]any{"building": map[string]any{
			"name": "SJC", "parentName": "Global/USA", "latitude": 37.4, "longitude": -121.9,
		}},
	}, payload)

	require.Equal(t, "siteId", res.Collection().IDQueryParam())
}

func TestSiteCrossValidation(t *testing.T) {
	res, err := NewSite()
	require.NoError(t, err)

	require.NoError(t, res.CrossValidate(schema.Record{"name": "Global/USA", "type": "area"}))
	require.NoError(t, res.CrossValidate(schema.Record{"name": "Global/USA/SJC/F1", "type": "floor", "rf_model": "Indoor High Ceiling"}))

	err = res.CrossValidate(schema.Record{"name": "Global/USA", "type": "area", "rf_model": "Indoor High Ceiling", "latitude": 1.0})
	require.ErrorContains(t, err, "rf_model applies only when type is floor")
	require.ErrorContains(t, err, "latitude applies only when type is building")

	require.ErrorContains(t, res.CrossValidate(schema.Record{"name": "Global/USA/SJC", "type": "building", "latitude": 1.0}), "set together")
	require.ErrorContains(t, res.CrossValidate(schema.Record{"name": "Global", "type": "area"}), "Global root")
}

func TestSplitSitePath(t *testing.T) {
	parent, leaf := SplitSitePath("Global/USA/SJC")
	require.Equal(t, "Global/USA", parent)
	require.Equal(t, "SJC", leaf)

	parent, leaf = SplitSitePath("Global")
	require.Empty(t, parent)
	require.Equal(t, "Global", leaf)
}

func TestSiteReferencesParent(t *testing.T) {
	res, err := NewSite()
	require.NoError(t, err)

	require.Equal(t, []string{"Global/USA"}, res.References(schema.Record{"name": "Global/USA/SJC"}))
	require.Empty(t, res.References(schema.Record{"name": "Global/USA"}), "Global is never managed")

	transit, err := NewTransit()
	require.NoError(t, err)
	require.Empty(t, transit.References(schema.Record{"name": "T1"}))
}
