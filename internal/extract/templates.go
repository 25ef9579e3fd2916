package extract

// Template value names shared by every neighbor template.
const (
	valNeighbor     = "NEIGHBOR"
	valLocalIntf    = "LOCAL_INTERFACE"
	valNeighborIntf = "NEIGHBOR_INTERFACE"
	valChassisID    = "CHASSIS_ID"
	valMgmtAddress  = "MGMT_ADDRESS"
)

const iosXELLDPTemplate = `Value Required LOCAL_INTERFACE (\S+)
Value CHASSIS_ID (\S+)
Value Required NEIGHBOR_INTERFACE (.+?)
Value NEIGHBOR (.+?)
Value MGMT_ADDRESS (\d+\.\d+\.\d+\.\d+)

Start
  ^Local Intf:\s+${LOCAL_INTERFACE}\s*$$
  ^Chassis id:\s+${CHASSIS_ID}\s*$$
  ^Port id:\s+${NEIGHBOR_INTERFACE}\s*$$
  ^System Name:\s+${NEIGHBOR}\s*$$
  ^\s+IP:\s+${MGMT_ADDRESS}
  ^-{10,} -> Record
`

const nxosLLDPTemplate = `Value CHASSIS_ID (\S+)
Value Required NEIGHBOR_INTERFACE (.+?)
Value Required LOCAL_INTERFACE (\S+)
Value NEIGHBOR (.+?)
Value MGMT_ADDRESS (\d+\.\d+\.\d+\.\d+)

Start
  ^Chassis id: -> Continue.Record
  ^Chassis id:\s+${CHASSIS_ID}\s*$$
  ^Port id:\s+${NEIGHBOR_INTERFACE}\s*$$
  ^Local Port id:\s+${LOCAL_INTERFACE}\s*$$
  ^System Name:\s+${NEIGHBOR}\s*$$
  ^Management Address:\s+${MGMT_ADDRESS}
`

const iosXRLLDPTemplate = `Value Required LOCAL_INTERFACE (\S+)
Value CHASSIS_ID (\S+)
Value Required NEIGHBOR_INTERFACE (.+?)
Value NEIGHBOR (.+?)
Value MGMT_ADDRESS (\d+\.\d+\.\d+\.\d+)

Start
  ^-{10,} -> Record
  ^Local Interface:\s+${LOCAL_INTERFACE}\s*$$
  ^Chassis id:\s+${CHASSIS_ID}\s*$$
  ^Port id:\s+${NEIGHBOR_INTERFACE}\s*$$
  ^System Name:\s+${NEIGHBOR}\s*$$
  ^\s+IPv4 address:\s+${MGMT_ADDRESS}
`

const cdpTemplate = `Value Required NEIGHBOR (\S+?)
Value Required LOCAL_INTERFACE ([^,\s]+)
Value Required NEIGHBOR_INTERFACE (\S+)
Value MGMT_ADDRESS (\d+\.\d+\.\d+\.\d+)

Start
  ^Device ID: -> Continue.Record
  ^Device ID:\s*${NEIGHBOR}(?:\([^)]*\))?\s*$$
  ^Interface:\s*${LOCAL_INTERFACE},\s+Port ID \(outgoing port\):\s*${NEIGHBOR_INTERFACE}
  ^\s+(?:IP|IPv4) [Aa]ddress:\s*${MGMT_ADDRESS}
`
