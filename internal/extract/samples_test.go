package extract

const iosXELLDPDetail = `Capability codes:
    (R) Router, (B) Bridge, (T) Telephone, (C) DOCSIS Cable Device
    (W) WLAN Access Point, (P) Repeater, (S) Station, (O) Other

------------------------------------------------
Local Intf: Gi1
Chassis id: 5254.0006.91b1
Port id: Gi0/0/0/0
Port Description: GigabitEthernet0/0/0/0
System Name: xr-1

System Description: 
Cisco IOS XR Software, Version 6.5.3[Default]
Copyright (c) 2019 by Cisco Systems, Inc., IOS-XRv 9000

Time remaining: 104 seconds
System Capabilities: R
Enabled Capabilities: R
Management Addresses:
    IP: 10.10.20.175
Auto Negotiation - not supported
Physical media capabilities - not advertised
Vlan ID: - not advertised

------------------------------------------------
Local Intf: Gi2
Chassis id: 5254.000a.4303
Port id: Ethernet1/1
Port Description: Ethernet1/1
System Name: dist-sw01

System Description: 
Cisco Nexus Operating System (NX-OS) Software 9.3(3)

Time remaining: 95 seconds
System Capabilities: B, R
Enabled Capabilities: B, R
Management Addresses:
    IP: 10.10.20.177
Auto Negotiation - not supported


Total entries displayed: 2
`

const nxosLLDPDetail = `Capability codes:
  (R) Router, (B) Bridge, (T) Telephone, (C) DOCSIS Cable Device
  (W) WLAN Access Point, (P) Repeater, (S) Station, (O) Other
Device ID            Local Intf      Hold-time  Capability  Port ID
Chassis id: 5254.0019.a2c1
Port id: Gi2
Local Port id: Eth1/1
Port Description: GigabitEthernet2
System Name: csr1000v-1
System Description: Cisco IOS Software [Gibraltar], Virtual XE Software
Time remaining: 101 seconds
System Capabilities: B, R
Enabled Capabilities: R
Management Address: 10.10.20.48
Management Address IPV6: not advertised
Vlan ID: not advertised

Chassis id: 5254.000b.1c2d
Port id: Ethernet1/1
Local Port id: Eth1/2
Port Description: Ethernet1/1
System Name: dist-sw02
System Description: Cisco Nexus Operating System (NX-OS) Software 9.3(3)
Time remaining: 98 seconds
System Capabilities: B, R
Enabled Capabilities: B, R
Management Address: 10.10.20.178
Management Address IPV6: not advertised
Vlan ID: 1

Total entries displayed: 2
`

const iosXRLLDPDetail = `Capability codes:
        (R) Router, (B) Bridge, (T) Telephone, (C) DOCSIS Cable Device
        (W) WLAN Access Point, (P) Repeater, (S) Station, (O) Other

------------------------------------------------
Local Interface: GigabitEthernet0/0/0/0
Chassis id: 5254.0019.a2c1
Port id: Gi1
Port Description: GigabitEthernet1
System Name: csr1000v-1

System Description: 
Cisco IOS Software [Gibraltar], Virtual XE Software, Version 16.11.1a

Time remaining: 100 seconds
Hold Time: 120 seconds
System Capabilities: B,R
Enabled Capabilities: R
Management Addresses:
  IPv4 address: 10.10.20.48 

Peer MAC Address: 52:54:00:19:a2:c1


Total entries displayed: 1
`

const iosXECDPDetail = `-------------------------
Device ID: dist-sw01.lab.local(9QXOX90PJ62)
Entry address(es): 
  IP address: 10.10.20.177
Platform: cisco N9K-9000v,  Capabilities: Router Switch IGMP Filtering Supports-STP-Dispute 
Interface: GigabitEthernet2,  Port ID (outgoing port): Ethernet1/3
Holdtime : 170 sec

Version :
Cisco Nexus Operating System (NX-OS) Software, Version 9.3(3)

advertisement version: 2
Native VLAN: 1
Duplex: full
Management address(es): 
  IP address: 10.10.20.177

-------------------------
Device ID: xr-1
Entry address(es): 
  IP address: 10.10.20.175
Platform: cisco IOS-XRv 9000,  Capabilities: Router 
Interface: GigabitEthernet1,  Port ID (outgoing port): GigabitEthernet0/0/0/1
Holdtime : 130 sec


Total cdp entries displayed : 2
`

const nxosCDPDetail = `----------------------------------------
Device ID:csr1000v-1.lab.local
System Name: csr1000v-1

Interface address(es):
    IPv4 Address: 10.10.20.48
Platform: cisco CSR1000V, Capabilities: Router Switch IGMP
Interface: mgmt0, Port ID (outgoing port): GigabitEthernet1
Holdtime: 163 sec

Version:
Cisco IOS Software [Gibraltar], Virtual XE Software

Advertisement Version: 2

Duplex: full

Mgmt address(es):
    IPv4 Address: 10.10.20.48
`

// Three neighbor blocks; the second one does not advertise a chassis id.
const iosXELLDPMissingChassis = `------------------------------------------------
Local Intf: Gi1
Chassis id: 5254.0006.91b1
Port id: Gi0/0/0/0
System Name: xr-1

------------------------------------------------
Local Intf: Gi2
Port id: Ethernet1/1
System Name: dist-sw01

------------------------------------------------
Local Intf: Gi3
Chassis id: 5254.000b.1c2d
Port id: Ethernet1/2
System Name: dist-sw02

Total entries displayed: 3
`
