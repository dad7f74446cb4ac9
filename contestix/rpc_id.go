package contestix

// RpcId identifies an RPC endpoint registered with the game server.
type RpcId string

func (id RpcId) String() string {
	return string(id)
}

const (
	RpcIdContestsGet          RpcId = "contests_get"
	RpcIdContestsRegister     RpcId = "contests_register"
	RpcIdContestsVirtualStart RpcId = "contests_virtual_start"
	RpcIdContestsVirtualEnd   RpcId = "contests_virtual_end"
	RpcIdRankingsPage         RpcId = "rankings_page"
	RpcIdRankingsResultWrite  RpcId = "rankings_result_write"
)
