// Protocol numbers and names used in tables.
package core

// IP protocol numbers reported in metadata tables.
const (
	ProtoICMP uint8 = 1
	ProtoTCP  uint8 = 6
	ProtoUDP  uint8 = 17
	ProtoRDP  uint8 = 27
	ProtoSCTP uint8 = 132
)

var protocolNames = map[uint8]string{
	ProtoICMP: "ICMP",
	ProtoTCP:  "TCP",
	ProtoUDP:  "UDP",
	ProtoRDP:  "RDP",
	ProtoSCTP: "SCTP",
}

// ProtocolName maps an IP protocol number to its table name, "Unknown" when
// the number is not one of the reported protocols.
func ProtocolName(proto uint8) string {
	if name, ok := protocolNames[proto]; ok {
		return name
	}
	return "Unknown"
}
