package store

// Datacenter is the top of the containment hierarchy. Height is the default
// rack-unit capacity inherited by rooms created without one. The n_* columns
// are write-through caches maintained by the mutation paths, never recomputed
// per request.
type Datacenter struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Height int    `json:"height"`
	NRooms int    `json:"n_rooms"`
	NRacks int    `json:"n_racks"`
	NHosts int    `json:"n_hosts"`
}

type Room struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Height int    `json:"height"`
	DCID   string `json:"dc_id"`
	NRacks int    `json:"n_racks"`
	NHosts int    `json:"n_hosts"`
}

// Rack carries dc_id denormalized from its room; the reparent coordinator is
// the only writer of that column.
type Rack struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Height    int     `json:"height"`
	RoomID    string  `json:"room_id"`
	DCID      string  `json:"dc_id"`
	ServiceID *string `json:"service_id"`
	NHosts    int     `json:"n_hosts"`
}

// Host carries room_id, dc_id and service_id denormalized from its rack.
// Running starts true and only an update flips it.
type Host struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Height    int     `json:"height"`
	IP        *string `json:"ip"`
	RackID    string  `json:"rack_id"`
	RoomID    string  `json:"room_id"`
	DCID      string  `json:"dc_id"`
	ServiceID *string `json:"service_id"`
	Pos       int     `json:"pos"`
	Running   bool    `json:"running"`
}

type Service struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	NRacks  int    `json:"n_racks"`
	NHosts  int    `json:"n_hosts"`
	TotalIP int    `json:"total_ip"`
}

type IPRange struct {
	ID      string `json:"id"`
	DCID    string `json:"dc_id"`
	StartIP string `json:"start_ip"`
	EndIP   string `json:"end_ip"`
}

type User struct {
	ID           string `json:"id"`
	Username     string `json:"username"`
	PasswordHash string `json:"-"`
	Role         string `json:"role"`
}

// Detail views embed direct children, mirroring what single-entity GETs
// return.

type DatacenterDetail struct {
	Datacenter
	Rooms    []Room    `json:"rooms"`
	IPRanges []IPRange `json:"ip_ranges"`
}

type RoomDetail struct {
	Room
	Racks []Rack `json:"racks"`
}

// RackDetail reports FreeUnits, the rack height minus the summed height of
// its hosts.
type RackDetail struct {
	Rack
	FreeUnits int    `json:"free_units"`
	Hosts     []Host `json:"hosts"`
}

type ServiceDetail struct {
	Service
	Racks        []Rack   `json:"racks"`
	TotalIPs     []string `json:"total_ip_list"`
	AvailableIPs []string `json:"available_ip_list"`
}
