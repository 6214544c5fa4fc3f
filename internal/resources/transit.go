package resources

import (
	"errors"

	"github.com/alexisbeaulieu97/ccreconcile/internal/domain/reconcile"
	"github.com/alexisbeaulieu97/ccreconcile/internal/ports"
	"github.com/alexisbeaulieu97/ccreconcile/internal/schema"
)

const (
	TransitIP  = "ip"
	TransitSDA = "sda"
)

// DeviceCollection lists network devices; used to resolve management IPs.
var DeviceCollection = reconcile.Collection{
	Name:       "network-device",
	Path:       "/dna/intent/api/v1/network-device",
	IDField:    "id",
	OffsetBase: 1,
}

// TransitSpec declares the SDA fabric transit kind.
func TransitSpec() schema.Spec {
	return schema.Spec{
		Kind:       "transit",
		NaturalKey: "name",
		Fields: []schema.Field{
			{Name: "name", Type: schema.TypeString, Required: true, MaxLength: 255, MustEcho: true},
			{
				Name: "type", Type: schema.TypeString, Choices: []string{TransitIP, TransitSDA},
				Immutable: true, MustEcho: true,
			},
			{
				Name: "asn", Type: schema.TypeInt, Validate: "asn",
				Wire: "ipTransitSettings.autonomousSystemNumber",
			},
			{
				Name: "control_plane_devices", Type: schema.TypeSet, Elem: schema.TypeString, Validate: "ipv4",
				Wire:   "sdaTransitSettings.controlPlaneNetworkDeviceIds",
				Lookup: &schema.Lookup{Collection: DeviceCollection.Name, FilterKey: "managementIpAddress", IDField: "id"},
			},
			{
				Name: "multicast", Type: schema.TypeBool, Default: false,
				Wire: "sdaTransitSettings.isMulticastOverTransitEnabled",
			},
		},
	}
}

// NewTransit builds the transit resource.
func NewTransit() (ports.Resource, error) {
	return New(Config{
		Spec: TransitSpec(),
		Collection: reconcile.Collection{
			Name:               "transit",
			Path:               "/dna/intent/api/v1/sda/transitNetworks",
			ItemPath:           "/dna/intent/api/v1/sda/transitNetworks/{id}",
			IDField:            "id",
			OffsetBase:         1,
			GetByQuery:         true,
			UpdateOnCollection: true,
			WrapPayload:        true,
		},
		Lookups:    map[string]reconcile.Collection{DeviceCollection.Name: DeviceCollection},
		MinVersion: "2.3.7",
		FilterKey:  "name",
		Codecs: map[string]Codec{
			"type": EnumCodec(map[string]string{TransitIP: "IP_BASED_TRANSIT", TransitSDA: "SDA_LISP_PUB_SUB_TRANSIT"}),
			"asn":  StringNumberCodec,
		},
		Checks:   []CrossCheck{transitSettingsCheck},
		Finalize: finalizeTransit,
		Sentinels: map[reconcile.Operation]reconcile.Sentinels{
			reconcile.OpCreate: {Failure: []string{"already exists"}},
			reconcile.OpUpdate: {Failure: []string{"does not exist"}},
			reconcile.OpDelete: {Failure: []string{"in use by fabric"}},
		},
	})
}

// finalizeTransit keeps only the settings block matching the transit type.
func finalizeTransit(values schema.Record, wire map[string]any) {
	switch values["type"] {
	case TransitIP:
		delete(wire, "sdaTransitSettings")
		if settings, ok := wire["ipTransitSettings"].(map[string]any); ok {
			settings["routingProtocolName"] = "BGP"
		} else {
			wire["ipTransitSettings"] = map[string]any{"routingProtocolName": "BGP"}
		}
	case TransitSDA:
		delete(wire, "ipTransitSettings")
	}
}

// transitSettingsCheck enforces the per-type settings. Records without a
// type inherit it from the controller and are not checked here.
func transitSettingsCheck(values schema.Record) error {
	typ, _ := values["type"].(string)
	_, hasASN := values["asn"]
	devices, _ := values["control_plane_devices"].([]any)

	switch typ {
	case TransitIP:
		if !hasASN {
			return errors.New("asn is required when type is ip")
		}
		if len(devices) > 0 {
			return errors.New("control_plane_devices applies only when type is sda")
		}
	case TransitSDA:
		if len(devices) == 0 {
			return errors.New("control_plane_devices is required when type is sda")
		}
		if hasASN {
			return errors.New("asn applies only when type is ip")
		}
		if len(devices) > 4 {
			return errors.New("control_plane_devices accepts at most 4 devices")
		}
	}
	return nil
}
