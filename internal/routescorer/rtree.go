// 文档注释：格子包围盒上的手写 R-tree
// 背景：逐段对格子做暴力扫描在候选格子数变大时太慢，需要一个空间索引；包里没有任何
// 第三方空间索引依赖，沿用 internal/revgeo/kdtree.go"手写、无外部依赖的小型几何数据结构"
// 的约定——这里把按经度/纬度交替分割的中位数二叉树，从"叶子是点"换成"叶子是格子包围盒"，
// 内部节点额外存一个子树包围盒的并集用于剪枝。
package routescorer

import "github.com/saferoute/risk-engine/internal/cellwindow"

type rtreeLeaf struct {
	h3Index string
	env     [4]float64 // minLon, minLat, maxLon, maxLat
}

type rtreeNode struct {
	bbox  [4]float64
	leaf  *rtreeLeaf
	left  *rtreeNode
	right *rtreeNode
}

// RTree 是按格子包围盒构建的只读空间索引，一次构建后供整批路线打分复用。
type RTree struct {
	root *rtreeNode
}

// BuildRTree 从 cellwindow.Fetch 的结果构建索引。
func BuildRTree(groups map[string]*cellwindow.Group) *RTree {
	leaves := make([]rtreeLeaf, 0, len(groups))
	for h3Index, g := range groups {
		minLon, minLat, maxLon, maxLat := g.Geom.Envelope()
		leaves = append(leaves, rtreeLeaf{h3Index: h3Index, env: [4]float64{minLon, minLat, maxLon, maxLat}})
	}
	return &RTree{root: buildRTreeNode(leaves, 0)}
}

func buildRTreeNode(leaves []rtreeLeaf, depth int) *rtreeNode {
	if len(leaves) == 0 {
		return nil
	}
	if len(leaves) == 1 {
		return &rtreeNode{bbox: leaves[0].env, leaf: &leaves[0]}
	}
	ax := depth % 2 // 0: split on lon center, 1: split on lat center
	mid := len(leaves) / 2
	selectNthByEnvelope(leaves, mid, ax)

	left := buildRTreeNode(leaves[:mid], depth+1)
	right := buildRTreeNode(leaves[mid:], depth+1)
	node := &rtreeNode{left: left, right: right}
	node.bbox = unionBBox(left, right)
	return node
}

func envCenter(env [4]float64, ax int) float64 {
	if ax == 0 {
		return (env[0] + env[2]) / 2
	}
	return (env[1] + env[3]) / 2
}

// selectNthByEnvelope 是 internal/revgeo/kdtree.go selectNth 的同款原地 nth 元素选择，
// 分割键换成包围盒中心坐标。
func selectNthByEnvelope(a []rtreeLeaf, n int, ax int) {
	lo, hi := 0, len(a)-1
	for lo < hi {
		p := partitionByEnvelope(a, lo, hi, (lo+hi)/2, ax)
		if p == n {
			return
		}
		if n < p {
			hi = p - 1
		} else {
			lo = p + 1
		}
	}
}

func partitionByEnvelope(a []rtreeLeaf, lo, hi, pivot, ax int) int {
	pv := envCenter(a[pivot].env, ax)
	a[pivot], a[hi] = a[hi], a[pivot]
	i := lo
	for j := lo; j < hi; j++ {
		if envCenter(a[j].env, ax) < pv {
			a[i], a[j] = a[j], a[i]
			i++
		}
	}
	a[i], a[hi] = a[hi], a[i]
	return i
}

func unionBBox(left, right *rtreeNode) [4]float64 {
	var bbox [4]float64
	first := true
	for _, n := range []*rtreeNode{left, right} {
		if n == nil {
			continue
		}
		if first {
			bbox = n.bbox
			first = false
			continue
		}
		if n.bbox[0] < bbox[0] {
			bbox[0] = n.bbox[0]
		}
		if n.bbox[1] < bbox[1] {
			bbox[1] = n.bbox[1]
		}
		if n.bbox[2] > bbox[2] {
			bbox[2] = n.bbox[2]
		}
		if n.bbox[3] > bbox[3] {
			bbox[3] = n.bbox[3]
		}
	}
	return bbox
}

// Query 返回包围盒与 qbox 重叠的所有格子的 h3_index；命中后仍需用 polygonsIntersect 做精确判定。
func (t *RTree) Query(qbox [4]float64) []string {
	var out []string
	var dfs func(n *rtreeNode)
	dfs = func(n *rtreeNode) {
		if n == nil || !envelopesOverlap(n.bbox, qbox) {
			return
		}
		if n.leaf != nil {
			out = append(out, n.leaf.h3Index)
			return
		}
		dfs(n.left)
		dfs(n.right)
	}
	dfs(t.root)
	return out
}
