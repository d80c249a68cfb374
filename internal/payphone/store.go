package payphone

// Store：按稳定位置排列的只读记录集
// 约束：构建后无增删；位置在一个加载周期内不变，索引只保存位置
type Store struct {
	recs []Record
}

// Load：校验全部输入行并构建记录集
// 约束：任一行非法即整体失败，不跳过，以免邮编索引缺项；缺失 id 时取行号+1
func Load(raw []RawRecord) (*Store, error) {
	recs := make([]Record, 0, len(raw))
	for i, row := range raw {
		r, err := ParseRecord(row, i, i+1)
		if err != nil {
			return nil, err
		}
		recs = append(recs, r)
	}
	return &Store{recs: recs}, nil
}

func (s *Store) Len() int {
	if s == nil {
		return 0
	}
	return len(s.recs)
}

// At：按位置取记录；越界会 panic，调用方只应传入索引给出的位置
func (s *Store) At(pos int) Record { return s.recs[pos] }

// Records：返回记录副本
func (s *Store) Records() []Record {
	if s == nil {
		return nil
	}
	out := make([]Record, len(s.recs))
	copy(out, s.recs)
	return out
}
