package registry

import "time"

const coreAPI = "/api/core/?model="

// Builtin returns the catalog dictionaries used by the request and selection forms.
// TTLs follow how often each table changes.
func Builtin() *Registry {
	return MustNew(
		Entry{Name: "ClientRequestsType", Path: coreAPI + "client_requests.ClientRequestsType", TTL: 300 * time.Minute},
		Entry{Name: "ClientRequestsStatus", Path: coreAPI + "client_requests.ClientRequestsStatus", TTL: time.Hour},
		Entry{Name: "Company", Path: coreAPI + "clients.Company", TTL: time.Hour},
		Entry{Name: "CompanyPerson", Path: coreAPI + "clients.CompanyPerson", TTL: time.Hour},
		Entry{Name: "ClientRequests", Path: coreAPI + "client_requests.ClientRequests", TTL: 24 * time.Hour},
		Entry{Name: "ClientRequestItem", Path: coreAPI + "client_requests.ClientRequestItem", TTL: 24 * time.Hour},
		Entry{
			Name: "ElectricActuatorRequirement",
			Path: coreAPI + "client_requests.ElectricActuatorRequirement",
			TTL:  24 * time.Hour,
		},
		Entry{Name: "ValveRequirement", Path: coreAPI + "client_requests.ValveRequirement", TTL: 24 * time.Hour},
		Entry{Name: "ValveSelection", Path: coreAPI + "client_requests.ValveSelection", TTL: 24 * time.Hour},
	)
}
